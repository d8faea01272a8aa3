package http

import (
	"context"
	"strconv"
)

func jsonNumber(id int64) string {
	return strconv.FormatInt(id, 10)
}

func canceled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
