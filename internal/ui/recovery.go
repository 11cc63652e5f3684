package ui

import (
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// SafeModel wraps a model with panic recovery so a rendering bug does not
// take the scenario down with the terminal.
type SafeModel struct {
	model  tea.Model
	logger *zap.Logger
}

func NewSafeModel(model tea.Model, logger *zap.Logger) *SafeModel {
	return &SafeModel{model: model, logger: logger}
}

func (sm *SafeModel) Init() (cmd tea.Cmd) {
	defer sm.recoverFromPanic("Init", &cmd)
	return sm.model.Init()
}

func (sm *SafeModel) Update(msg tea.Msg) (_ tea.Model, cmd tea.Cmd) {
	defer sm.recoverFromPanic("Update", &cmd)
	sm.model, cmd = sm.model.Update(msg)
	return sm, cmd
}

func (sm *SafeModel) View() (view string) {
	defer func() {
		if r := recover(); r != nil {
			sm.logger.Error("View panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			view = "UI error: view crashed. Press q to exit."
		}
	}()
	return sm.model.View()
}

func (sm *SafeModel) recoverFromPanic(method string, cmd *tea.Cmd) {
	if r := recover(); r != nil {
		sm.logger.Error("UI method panic recovered",
			zap.String("method", method),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())))
		*cmd = nil
	}
}
