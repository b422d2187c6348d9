package domain

import (
    "fmt"
    "strings"

    "golang.org/x/net/idna"
)

// NormalizeContractorID canonicalizes an email identity so calendars keyed by
// "Ana@Example.com" and "ana@example.com" are the same record. The domain is
// mapped through IDNA lookup rules (lower-case, punycode).
func NormalizeContractorID(email string) (string, error) {
    email = strings.TrimSpace(email)
    at := strings.LastIndex(email, "@")
    if at <= 0 || at == len(email)-1 {
        return "", fmt.Errorf("%w: contractor id %q is not an email", ErrInvalidRequest, email)
    }
    local, host := email[:at], email[at+1:]
    ascii, err := idna.Lookup.ToASCII(host)
    if err != nil {
        return "", fmt.Errorf("%w: contractor id %q: %v", ErrInvalidRequest, email, err)
    }
    return strings.ToLower(local) + "@" + ascii, nil
}
