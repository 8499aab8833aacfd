package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound error = errors.New("rockstar not found")
)

// Rockstar is the only record kept by the store.
type Rockstar struct {
	ID        int    `json:"id" form:"id"`
	FirstName string `json:"firstName" form:"firstName"`
	LastName  string `json:"lastName" form:"lastName"`
	Age       int    `json:"age" form:"age"`
	Alive     bool   `json:"alive" form:"alive"`
}

// URL is derived from Alive and LastName on every read, it is never stored.
func (r Rockstar) URL() string {
	status := "dead"
	if r.Alive {
		status = "alive"
	}

	return fmt.Sprintf("/stars/%s/%s/", status, strings.ToLower(r.LastName))
}

type rockstarJSON struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
	Alive     bool   `json:"alive"`
	URL       string `json:"url"`
}

func (r Rockstar) MarshalJSON() ([]byte, error) {
	return json.Marshal(rockstarJSON{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Age:       r.Age,
		Alive:     r.Alive,
		URL:       r.URL(),
	})
}
