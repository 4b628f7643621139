// Copyright 2021 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

// Package pvmlog is the module's structured logger: Debug/Info/Warn/Error
// with alternating key/value context, backed by logrus.
package pvmlog

import (
	"github.com/sirupsen/logrus"
)

var root = logrus.New()

// SetLevel adjusts the minimum level emitted; useful for silencing trace
// output in tests.
func SetLevel(level logrus.Level) {
	root.SetLevel(level)
}

func fields(ctx []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			continue
		}
		f[key] = ctx[i+1]
	}
	return f
}

// Debug logs msg at debug level with alternating key/value context.
func Debug(msg string, ctx ...interface{}) { root.WithFields(fields(ctx)).Debug(msg) }

// Info logs msg at info level with alternating key/value context.
func Info(msg string, ctx ...interface{}) { root.WithFields(fields(ctx)).Info(msg) }

// Warn logs msg at warn level with alternating key/value context.
func Warn(msg string, ctx ...interface{}) { root.WithFields(fields(ctx)).Warn(msg) }

// Error logs msg at error level with alternating key/value context.
func Error(msg string, ctx ...interface{}) { root.WithFields(fields(ctx)).Error(msg) }
