package optrack

import (
	"github.com/justincmoy/optrack/internal/emit"
	"github.com/justincmoy/optrack/internal/intern"
)

func newTestPool() *intern.Pool { return intern.NewPool() }

func newTestJSON() *emit.JSON { return emit.NewJSON() }
