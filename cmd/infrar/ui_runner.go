package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"infrar/internal/driver"
	"infrar/internal/pipeline"
	"infrar/internal/ui"
)

type transformOutcome struct {
	result *driver.RunResult
	err    error
}

func runTransformWithUI(ctx context.Context, title, dir string, opts driver.Options) (*driver.RunResult, error) {
	files, err := driver.ListGoFiles(dir)
	if err != nil {
		return nil, err
	}

	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan transformOutcome, 1)

	go func() {
		o := opts
		o.Sink = pipeline.ChannelSink{Ch: events}
		res, err := driver.TransformDir(ctx, dir, o)
		outcomeCh <- transformOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
