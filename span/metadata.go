// Copyright (C) 2024 Entrace Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package span

import (
	"fmt"

	"github.com/algorithmiker/entrace/internal/binenc"
)

// Level is a span's severity.
type Level uint8

const (
	LevelTrace Level = 1
	LevelDebug Level = 2
	LevelInfo  Level = 3
	LevelWarn  Level = 4
	LevelError Level = 5
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", uint8(l))
	}
}

// Metadata is the per-span structural description that never changes
// after ingestion. Optional fields use the empty string / zero value to
// mean "absent"; Line additionally carries HasLine since 0 is a valid
// line number.
type Metadata struct {
	Name       string
	Level      Level
	File       string // optional, "" means absent
	Line       uint32
	HasLine    bool
	Target     string
	ModulePath string // optional, "" means absent
}

// Encode appends the canonical encoding of m to w.
func (m Metadata) Encode(w *binenc.Writer) {
	w.String(m.Name)
	w.Uint8(uint8(m.Level))
	w.Bool(m.File != "")
	if m.File != "" {
		w.String(m.File)
	}
	w.Bool(m.HasLine)
	if m.HasLine {
		w.Uint32(m.Line)
	}
	w.String(m.Target)
	w.Bool(m.ModulePath != "")
	if m.ModulePath != "" {
		w.String(m.ModulePath)
	}
}

// DecodeMetadata reads a Metadata value encoded by Metadata.Encode.
func DecodeMetadata(r *binenc.Reader) (Metadata, error) {
	var m Metadata
	var err error
	if m.Name, err = r.String(); err != nil {
		return m, fmt.Errorf("span: decoding metadata name: %w", err)
	}
	lvl, err := r.Uint8()
	if err != nil {
		return m, fmt.Errorf("span: decoding metadata level: %w", err)
	}
	m.Level = Level(lvl)
	hasFile, err := r.Bool()
	if err != nil {
		return m, fmt.Errorf("span: decoding metadata file flag: %w", err)
	}
	if hasFile {
		if m.File, err = r.String(); err != nil {
			return m, fmt.Errorf("span: decoding metadata file: %w", err)
		}
	}
	if m.HasLine, err = r.Bool(); err != nil {
		return m, fmt.Errorf("span: decoding metadata line flag: %w", err)
	}
	if m.HasLine {
		if m.Line, err = r.Uint32(); err != nil {
			return m, fmt.Errorf("span: decoding metadata line: %w", err)
		}
	}
	if m.Target, err = r.String(); err != nil {
		return m, fmt.Errorf("span: decoding metadata target: %w", err)
	}
	hasModule, err := r.Bool()
	if err != nil {
		return m, fmt.Errorf("span: decoding metadata module flag: %w", err)
	}
	if hasModule {
		if m.ModulePath, err = r.String(); err != nil {
			return m, fmt.Errorf("span: decoding metadata module path: %w", err)
		}
	}
	return m, nil
}
