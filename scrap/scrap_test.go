package scrap

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	pages := [][]string{{"a", "b"}, {"c", "d"}, {"e"}}
	var calls []int
	got, err := paginate(2, func(page int) ([]string, error) {
		calls = append(calls, page)
		return pages[page-1], nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestPaginateExactMultiple(t *testing.T) {
	pages := [][]string{{"a", "b"}, {}}
	got, err := paginate(2, func(page int) ([]string, error) {
		return pages[page-1], nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestPaginateError(t *testing.T) {
	got, err := paginate(1, func(page int) ([]string, error) {
		if page == 2 {
			return nil, errors.New("throttled")
		}
		return []string{"a"}, nil
	})
	assert.Error(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestSubdomainName(t *testing.T) {
	cases := []struct {
		r    record
		want string
		ok   bool
	}{
		{record{RR: "www", Type: "A"}, "www.example.com", true},
		{record{RR: "api", Type: "CNAME"}, "api.example.com", true},
		{record{RR: "v6", Type: "AAAA"}, "v6.example.com", true},
		{record{RR: "@", Type: "A"}, "", false},
		{record{RR: "*", Type: "A"}, "", false},
		{record{RR: "mail", Type: "MX"}, "", false},
		{record{RR: "_dmarc", Type: "TXT"}, "", false},
	}
	for _, tc := range cases {
		got, ok := subdomainName(tc.r, "example.com")
		assert.Equal(t, tc.ok, ok, tc.r)
		assert.Equal(t, tc.want, got, tc.r)
	}
}
