package subito

import (
	"fmt"
	"net/url"
	"strconv"
)

// PageURL returns the address of index page n: the base URL for page 1 and
// the base URL with o=n for every later page.
func PageURL(base string, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("invalid page number %d", n)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("base url %q is not absolute", base)
	}
	q := u.Query()
	if n == 1 {
		q.Del("o")
	} else {
		q.Set("o", strconv.Itoa(n))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
