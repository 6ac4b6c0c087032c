package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/deal-finder/internal/model"
)

// unknownDealID names items whose dealID could not be read.
const unknownDealID = "unknown"

var (
	errMissingDealID  = errors.New("missing dealID")
	errMissingStoreID = errors.New("missing storeID")
)

// looseValue accepts a JSON string, number, boolean or null and keeps its
// textual form.  The pricing API is inconsistent about quoting numbers.
type looseValue struct {
	text string
	set  bool
}

func (v *looseValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*v = looseValue{}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = looseValue{text: strings.TrimSpace(s), set: true}
	case string(b) == "true":
		*v = looseValue{text: "1", set: true}
	case string(b) == "false":
		*v = looseValue{text: "0", set: true}
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("unexpected JSON value %.20s", b)
	default:
		*v = looseValue{text: string(b), set: true}
	}
	return nil
}

func (v looseValue) empty() bool { return !v.set || v.text == "" }

type rawStore struct {
	StoreID   looseValue `json:"storeID"`
	StoreName looseValue `json:"storeName"`
	IsActive  looseValue `json:"isActive"`
}

type rawDeal struct {
	DealID          looseValue `json:"dealID"`
	Title           looseValue `json:"title"`
	StoreID         looseValue `json:"storeID"`
	SalePrice       looseValue `json:"salePrice"`
	NormalPrice     looseValue `json:"normalPrice"`
	DealRating      looseValue `json:"dealRating"`
	MetacriticScore looseValue `json:"metacriticScore"`
	Thumb           looseValue `json:"thumb"`
	ReleaseDate     looseValue `json:"releaseDate"`
	LastChange      looseValue `json:"lastChange"`
}

// placeholderStoreName is used for stores referenced by deals before they
// were synced.
func placeholderStoreName(id int) string {
	return "Store " + strconv.Itoa(id)
}

// normalizeStore decodes one store item.
func normalizeStore(raw json.RawMessage) (model.Store, error) {
	var r rawStore
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.Store{}, err
	}
	if r.StoreID.empty() {
		return model.Store{}, errMissingStoreID
	}
	id, err := strconv.Atoi(r.StoreID.text)
	if err != nil {
		return model.Store{}, fmt.Errorf("storeID %q: %w", r.StoreID.text, err)
	}
	name := r.StoreName.text
	if name == "" {
		name = placeholderStoreName(id)
	}
	return model.Store{
		StoreID:  id,
		Name:     name,
		IsActive: r.IsActive.text == "1" || strings.EqualFold(r.IsActive.text, "true"),
	}, nil
}

// normalizeDeal decodes one deal item.  The returned id is the best known
// deal id (unknownDealID when absent) and is meant for log lines even when
// err is non-nil.  Missing prices and rating become zero; an empty
// metacriticScore and missing, "0" or unparsable timestamps become nil.
func normalizeDeal(raw json.RawMessage) (d model.Deal, id string, err error) {
	var r rawDeal
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.Deal{}, peekDealID(raw), err
	}
	if r.DealID.empty() {
		return model.Deal{}, unknownDealID, errMissingDealID
	}
	id = r.DealID.text
	if r.StoreID.empty() {
		return model.Deal{}, id, errMissingStoreID
	}
	storeID, err := strconv.Atoi(r.StoreID.text)
	if err != nil {
		return model.Deal{}, id, fmt.Errorf("storeID %q: %w", r.StoreID.text, err)
	}

	d = model.Deal{DealID: id, Title: r.Title.text, StoreID: storeID}
	if d.SalePrice, err = parseAmount("salePrice", r.SalePrice, 2); err != nil {
		return model.Deal{}, id, err
	}
	if d.NormalPrice, err = parseAmount("normalPrice", r.NormalPrice, 2); err != nil {
		return model.Deal{}, id, err
	}
	if d.DealRating, err = parseAmount("dealRating", r.DealRating, 1); err != nil {
		return model.Deal{}, id, err
	}
	if !r.MetacriticScore.empty() {
		n, err := strconv.Atoi(r.MetacriticScore.text)
		if err != nil {
			return model.Deal{}, id, fmt.Errorf("metacriticScore %q: %w", r.MetacriticScore.text, err)
		}
		d.MetacriticScore = &n
	}
	if !r.Thumb.empty() {
		t := r.Thumb.text
		d.Thumb = &t
	}
	d.ReleaseDate = parseEpoch(r.ReleaseDate)
	d.LastChange = parseEpoch(r.LastChange)
	return d, id, nil
}

// parseAmount reads a non-negative decimal rounded to places.  Missing
// values are zero.
func parseAmount(field string, v looseValue, places int32) (decimal.Decimal, error) {
	if v.empty() {
		return decimal.Zero, nil
	}
	n, err := decimal.NewFromString(v.text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q: %w", field, v.text, err)
	}
	if n.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s %q: negative amount", field, v.text)
	}
	return n.Round(places), nil
}

// parseEpoch converts a Unix-seconds value to UTC.  Missing, "0", negative
// or unparsable values yield nil.
func parseEpoch(v looseValue) *time.Time {
	if v.empty() {
		return nil
	}
	n, err := strconv.ParseInt(v.text, 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	t := time.Unix(n, 0).UTC()
	return &t
}

// peekDealID extracts dealID from an item that failed full decoding.
func peekDealID(raw json.RawMessage) string {
	var probe struct {
		DealID looseValue `json:"dealID"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.DealID.empty() {
		return unknownDealID
	}
	return probe.DealID.text
}
