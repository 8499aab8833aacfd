package api

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/yulifengwx/RazorRockstars/storage"
)

var csvHeader = []string{"Id", "FirstName", "LastName", "Age", "Alive", "Url"}

// encodeCSV writes the results as the top level row set.
func encodeCSV(rs []storage.Rockstar) ([]byte, error) {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, r := range rs {
		err := w.Write([]string{
			strconv.Itoa(r.ID),
			r.FirstName,
			r.LastName,
			strconv.Itoa(r.Age),
			strconv.FormatBool(r.Alive),
			r.URL(),
		})
		if err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
