package main

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/vadiminshakov/dipbot/internal/domain"
)

// consume reads status events until r fails or ends. onEvent is called once per
// data line with whether it decoded as a snapshot record. It returns the last
// decoded index.
func consume(r io.Reader, onEvent func(ok bool)) (uint64, error) {
	var last uint64
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if data, found := strings.CutPrefix(line, "data: "); found {
			var rec domain.StatusSnapshotRecord
			if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(data)), &rec); jsonErr != nil {
				onEvent(false)
			} else {
				last = rec.Index
				onEvent(true)
			}
		}
		if err != nil {
			if err == io.EOF {
				return last, nil
			}
			return last, err
		}
	}
}
