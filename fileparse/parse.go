// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fileparse reads the text inputs of an equilibrium problem.
//
// A composition file (.cfe, .ocx) holds one polymer per row: the monomer counts
// followed by the free energy in the last column. Files written by NUPACK carry
// two extra leading columns, the complex index and the permutation index, which
// are detected and dropped. A concentration file (.con) holds one monomer
// concentration per line.
package fileparse

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrFormat reports malformed input text.
var ErrFormat = errors.New("malformed input")

// nupackSample is the number of leading rows inspected for NUPACK indexing.
const nupackSample = 20

// Input is a parsed problem in solver layout.
type Input struct {
	A        *mat.Dense // m × n composition, one column per polymer
	Energies []float64  // n free energies
	Monomers []float64  // m initial concentrations
	Nupack   bool       // whether the index columns were dropped
}

// Read parses a composition and a concentration file.
func Read(cfe, con io.Reader) (*Input, error) {
	cfeData, err := io.ReadAll(cfe)
	if err != nil {
		return nil, fmt.Errorf("reading composition: %w", err)
	}
	conData, err := io.ReadAll(con)
	if err != nil {
		return nil, fmt.Errorf("reading concentrations: %w", err)
	}
	in, err := ParseCFE(cfeData)
	if err != nil {
		return nil, err
	}
	if in.Monomers, err = ParseCON(conData); err != nil {
		return nil, err
	}
	return in, nil
}

// ParseCFE parses a composition file and transposes it into an m × n composition.
func ParseCFE(data []byte) (*Input, error) {
	rows, err := table(data)
	if err != nil {
		return nil, fmt.Errorf("composition: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: composition file has no rows", ErrFormat)
	}

	in := &Input{Nupack: isNupack(rows)}
	skip := 0
	if in.Nupack {
		skip = 2
	}
	width := len(rows[0])
	m, n := width-1-skip, len(rows)
	if m < 1 {
		return nil, fmt.Errorf("%w: composition rows need monomer counts and a free energy, got %d columns", ErrFormat, width)
	}

	in.A = mat.NewDense(m, n, nil)
	in.Energies = make([]float64, n)
	for j, row := range rows {
		for i, field := range row[skip : width-1] {
			v, err := ParseFloat(field)
			if err != nil {
				return nil, fmt.Errorf("composition row %d column %d: %w", j+1, skip+i+1, err)
			}
			in.A.Set(i, j, v)
		}
		if in.Energies[j], err = ParseFloat(row[width-1]); err != nil {
			return nil, fmt.Errorf("composition row %d free energy: %w", j+1, err)
		}
	}
	return in, nil
}

// ParseCON parses a concentration file.
func ParseCON(data []byte) ([]float64, error) {
	var out []float64
	for k, line := range lines(data) {
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
		if len(fields) != 1 {
			return nil, fmt.Errorf("%w: concentration line %d has %d values", ErrFormat, k+1, len(fields))
		}
		v, err := ParseFloat(fields[0])
		if err != nil {
			return nil, fmt.Errorf("concentration line %d: %w", k+1, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: concentration file is empty", ErrFormat)
	}
	return out, nil
}

// DetectDelimiter returns the first byte of the first data line that can not be
// part of a number.
func DetectDelimiter(data []byte) (byte, error) {
	ls := lines(data)
	if len(ls) == 0 {
		return 0, fmt.Errorf("%w: no data line", ErrFormat)
	}
	line := strings.TrimLeft(ls[0], " \t")
	for k := 0; k < len(line); k++ {
		switch c := line[k]; {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c == '+', c == '-', c == '.':
		default:
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: failed to detect delimiter", ErrFormat)
}

// ParseFloat accepts the plain and exponent notations, with blanks around the exponent marker.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return v, nil
	}
	if k := strings.IndexAny(s, "eE"); k > 0 {
		base, err1 := strconv.ParseFloat(strings.TrimSpace(s[:k]), 64)
		exp, err2 := strconv.Atoi(strings.TrimSpace(s[k+1:]))
		if err1 == nil && err2 == nil {
			return base * math.Pow10(exp), nil
		}
	}
	return 0, fmt.Errorf("%w: invalid number %q", ErrFormat, s)
}

// lines returns the non-blank lines that are not % or # comments.
func lines(data []byte) []string {
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		t := strings.TrimSpace(line)
		if t == "" || t[0] == '%' || t[0] == '#' {
			continue
		}
		out = append(out, line)
	}
	return out
}

// table splits the data lines on the detected delimiter. Runs of blanks count
// as one delimiter.
func table(data []byte) ([][]string, error) {
	delim, err := DetectDelimiter(data)
	if err != nil {
		return nil, err
	}
	ls := lines(data)

	var rows [][]string
	if delim == ' ' || delim == '\t' {
		for _, line := range ls {
			rows = append(rows, strings.Fields(line))
		}
	} else {
		r := csv.NewReader(bytes.NewBufferString(strings.Join(ls, "\n")))
		r.Comma = rune(delim)
		r.TrimLeadingSpace = true
		r.FieldsPerRecord = -1
		if rows, err = r.ReadAll(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}

	for k, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrFormat, k+1, len(row), len(rows[0]))
		}
	}
	return rows, nil
}

// isNupack reports whether the leading rows are numbered 1, 2, ... with permutation index 1.
func isNupack(rows [][]string) bool {
	if len(rows[0]) < 4 {
		return false
	}
	for k := 0; k < min(nupackSample, len(rows)); k++ {
		id, err1 := strconv.Atoi(strings.TrimSpace(rows[k][0]))
		perm, err2 := strconv.Atoi(strings.TrimSpace(rows[k][1]))
		if err1 != nil || err2 != nil || id != k+1 || perm != 1 {
			return false
		}
	}
	return true
}
