// Package records decodes CSV rows into structs, matching the header row to
// struct fields.
package records

import (
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/IvanTurko/depthstream-go/sdkerr"
)

const (
	subsys = "records"
	tag    = "csv"
)

// Option configures a Reader.
type Option func(*csv.Reader)

// WithComma sets the field delimiter. The default is ','.
func WithComma(r rune) Option {
	return func(c *csv.Reader) {
		c.Comma = r
	}
}

// WithComment sets the comment character. Lines starting with it are skipped.
func WithComment(r rune) Option {
	return func(c *csv.Reader) {
		c.Comment = r
	}
}

// Reader reads records of type T. T must be a struct; its exported fields
// are bound to columns by the `csv:"name"` tag, or by the field name when
// there is no tag. A tag of "-" skips the field. Columns not named by T are
// ignored.
type Reader[T any] struct {
	csv    *csv.Reader
	dec    *csvutil.Decoder
	header []string
	err    error
}

// NewReader reads the header row from r and binds it to T.
//
// Errors:
//   - sdkerr.ErrValidation: T is not a struct, or a column it names is missing.
//   - sdkerr.ErrDecodeError: the header row could not be read.
func NewReader[T any](r io.Reader, opts ...Option) (*Reader[T], error) {
	op := "NewReader"

	c := csv.NewReader(r)
	for _, opt := range opts {
		opt(c)
	}

	header, err := c.Read()
	if err != nil {
		msg := "cannot read header row"
		if errors.Is(err, io.EOF) {
			msg = "missing header row"
		}
		return nil, sdkerr.New(subsys, op, sdkerr.ErrDecodeError).
			WithMessage(msg).
			WithCause(err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	var zero T
	want, err := csvutil.Header(zero, tag)
	if err != nil {
		return nil, sdkerr.New(subsys, op, sdkerr.ErrValidation).
			WithMessagef("cannot bind %T", zero).
			WithCause(err)
	}
	var missing []string
	for _, name := range want {
		if !slices.Contains(header, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, sdkerr.New(subsys, op, sdkerr.ErrValidation).
			WithMessagef("missing columns: %s", strings.Join(missing, ", "))
	}

	c.FieldsPerRecord = len(header)
	dec, err := csvutil.NewDecoder(c, header...)
	if err != nil {
		return nil, sdkerr.New(subsys, op, sdkerr.ErrValidation).WithCause(err)
	}
	dec.Tag = tag

	return &Reader[T]{csv: c, dec: dec, header: header}, nil
}

// Header returns the column names of the header row.
func (r *Reader[T]) Header() []string {
	return append([]string(nil), r.header...)
}

// Next decodes the next row.
//
// It returns io.EOF after the last row. A row that cannot be parsed or
// converted yields an sdkerr.ErrDecodeError naming its line; the reader
// stays usable and the following call moves on to the next row. A failure
// of the underlying io.Reader is returned by every later call.
func (r *Reader[T]) Next() (T, error) {
	var out T
	op := "Reader.Next"

	if r.err != nil {
		return out, r.err
	}

	err := r.dec.Decode(&out)
	if err == nil {
		return out, nil
	}

	var (
		perr *csv.ParseError
		derr *csvutil.DecodeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return out, io.EOF
	case errors.As(err, &perr):
		return out, sdkerr.New(subsys, op, sdkerr.ErrDecodeError).
			WithMessagef("line %d", perr.StartLine).
			WithCause(perr.Err)
	case errors.As(err, &derr):
		line := derr.Line
		if line == 0 {
			line, _ = r.csv.FieldPos(0)
		}
		return out, sdkerr.New(subsys, op, sdkerr.ErrDecodeError).
			WithMessagef("line %d: column %q: cannot decode %q", line, derr.Field, r.cell(derr.Field)).
			WithCause(derr.Err)
	default:
		// the underlying reader failed; nothing after this point is readable
		r.err = sdkerr.New(subsys, op, sdkerr.ErrDecodeError).WithCause(err)
		return out, r.err
	}
}

// cell returns the value of column in the row read last.
func (r *Reader[T]) cell(column string) string {
	i := slices.Index(r.header, column)
	row := r.dec.Record()
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Records returns the remaining rows as a lazy sequence. Rows that fail to
// decode are yielded as (zero, err) and the sequence continues; it stops at
// the end of the input or on a read failure.
func (r *Reader[T]) Records() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) {
				return
			}
			if r.err != nil {
				return
			}
		}
	}
}

// ReadAll decodes every remaining row. It stops at the first error.
func (r *Reader[T]) ReadAll() ([]T, error) {
	var out []T
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
