package jlog

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/relaykit/goldenpath"
)

func New() *logger {
	return &logger{}
}

type logger struct{}

func (l logger) Debug(ctx context.Context, msg string, meta goldenpath.MKV) {
	log.Debug(ctx, msg, j.MKS(meta))
}

func (l logger) Error(ctx context.Context, err error) {
	log.Error(ctx, errors.Wrap(err, ""))
}

var _ goldenpath.Logger = (*logger)(nil)
