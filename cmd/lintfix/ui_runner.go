package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"lintfix/internal/batch"
	"lintfix/internal/ui"
)

type batchOutcome struct {
	result batch.Result
	err    error
}

func runFixWithUI(ctx context.Context, title string, files []string, req batch.Request) (batch.Result, error) {
	events := make(chan batch.Event, 256)
	outcomeCh := make(chan batchOutcome, 1)

	go func() {
		req.Progress = batch.ChannelSink{Ch: events}
		res, err := batch.Run(ctx, req)
		outcomeCh <- batchOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	if uiErr != nil {
		// модель больше не читает канал, дочитываем, чтобы воркеры не встали
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
