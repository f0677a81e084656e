package main

import "context"

// loggingCanvas accepts every camera move without a real board attached.
// Executed moves show up in the UI through the tool call events, so the
// controller itself has nothing to render.
type loggingCanvas struct{}

func (loggingCanvas) Pan(context.Context, float64, float64) error { return nil }
func (loggingCanvas) Zoom(context.Context, float64) error         { return nil }
func (loggingCanvas) Fit(context.Context) error                   { return nil }
func (loggingCanvas) Center(context.Context) error                { return nil }
func (loggingCanvas) Focus(context.Context, string) error         { return nil }
