// Command csvread prints the records of a CSV file, either decoded into
// customers or as raw rows.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/IvanTurko/depthstream-go/internal/logx"
	"github.com/IvanTurko/depthstream-go/records"
)

// Customer is one row of the customers file.
type Customer struct {
	CustomerGUID string `csv:"customer_guid"`
	FirstName    string `csv:"first_name"`
	LastName     string `csv:"last_name"`
	Email        string `csv:"email"`
	Address      string `csv:"address"`
}

func main() {
	var (
		path     string
		raw      bool
		logLevel string
	)
	flag.StringVar(&path, "file", "-", "CSV file to read, - for stdin")
	flag.BoolVar(&raw, "raw", false, "print raw rows instead of decoding customers")
	flag.StringVar(&logLevel, "log-level", "info", "log level")
	flag.Parse()

	logger := logx.New(logLevel)
	defer logger.Sync()

	in := io.Reader(os.Stdin)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			logger.Error("cannot open input", zap.Error(err))
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	var err error
	if raw {
		err = printRaw(in, os.Stdout)
	} else {
		var bad int
		bad, err = printCustomers(in, os.Stdout, logger)
		if err == nil && bad > 0 {
			err = fmt.Errorf("%d rows could not be decoded", bad)
		}
	}
	if err != nil {
		logger.Error("csvread failed", zap.Error(err))
		os.Exit(1)
	}
}

// printCustomers prints the header and every decodable row, logging the
// rest. It returns how many rows were skipped.
func printCustomers(in io.Reader, out io.Writer, logger *zap.Logger) (int, error) {
	r, err := records.NewReader[Customer](in)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(out, "%q\n", r.Header())

	skipped := 0
	for c, err := range r.Records() {
		if err != nil {
			skipped++
			logger.Warn("row skipped", zap.Error(err))
			continue
		}
		fmt.Fprintf(out, "%+v\n", c)
	}
	return skipped, nil
}

func printRaw(in io.Reader, out io.Writer) error {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Headers: %q\n", header)

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%q\n", row)
	}
}
