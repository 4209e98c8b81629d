// SPDX-License-Identifier: MPL-2.0

package repourl

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// SchemeSSH is the scp-like "git@host:owner/repo.git" form.
	SchemeSSH Scheme = "ssh"
	// SchemeHTTPS is the canonical scheme.
	SchemeHTTPS Scheme = "https"
	// SchemeHTTP is accepted on input and re-encodable on output.
	SchemeHTTP Scheme = "http"

	gitSuffix = ".git"
)

var (
	// ErrMalformedURL is the sentinel error wrapped by MalformedURLError.
	ErrMalformedURL = errors.New("malformed repository url")
	// ErrUnsupportedScheme is the sentinel error wrapped by UnsupportedSchemeError.
	ErrUnsupportedScheme = errors.New("unsupported scheme")

	scpPattern = regexp.MustCompile(`^(?P<user>[^@/]+)@(?P<host>[^:/]+):(?P<path>.+)$`)
)

type (
	// Scheme is the transport used to reach a repository.
	Scheme string

	// URL is a decomposed repository location. Owner and Repo are never empty
	// and Repo never carries a ".git" suffix.
	URL struct {
		Scheme Scheme
		Host   string
		Owner  string
		Repo   string
	}

	// MalformedURLError is returned when a raw URL cannot be split into
	// host, owner and repository.
	MalformedURLError struct {
		Raw    string
		Reason string
	}

	// UnsupportedSchemeError is returned when encoding to a scheme that has no
	// serialization.
	UnsupportedSchemeError struct {
		Scheme Scheme
	}
)

// Error implements the error interface.
func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("malformed repository url %q: %s", e.Raw, e.Reason)
}

// Unwrap returns ErrMalformedURL for errors.Is() compatibility.
func (e *MalformedURLError) Unwrap() error { return ErrMalformedURL }

// Error implements the error interface.
func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported scheme %q (expected https, http or ssh)", e.Scheme)
}

// Unwrap returns ErrUnsupportedScheme for errors.Is() compatibility.
func (e *UnsupportedSchemeError) Unwrap() error { return ErrUnsupportedScheme }

// String returns the scheme name.
func (s Scheme) String() string { return string(s) }

// IsValid returns whether the Scheme is one of the known transports.
func (s Scheme) IsValid() (bool, []error) {
	switch s {
	case SchemeSSH, SchemeHTTPS, SchemeHTTP:
		return true, nil
	default:
		return false, []error{&UnsupportedSchemeError{Scheme: s}}
	}
}

// Parse decomposes a repository URL. It accepts scp-like SSH addresses,
// ssh:// and git+ssh:// URLs and http(s) URLs with optional credentials.
// Path segments after the repository are ignored.
func Parse(raw string) (URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return URL{}, &MalformedURLError{Raw: raw, Reason: "empty url"}
	}

	if !strings.Contains(trimmed, "://") {
		if m := scpPattern.FindStringSubmatch(trimmed); m != nil {
			host := m[scpPattern.SubexpIndex("host")]
			return fromPath(raw, SchemeSSH, host, m[scpPattern.SubexpIndex("path")])
		}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return URL{}, &MalformedURLError{Raw: raw, Reason: err.Error()}
	}

	switch strings.ToLower(u.Scheme) {
	case "ssh", "git+ssh":
		return fromPath(raw, SchemeSSH, u.Hostname(), u.Path)
	case "https":
		return fromPath(raw, SchemeHTTPS, u.Host, u.Path)
	case "http":
		return fromPath(raw, SchemeHTTP, u.Host, u.Path)
	case "":
		return URL{}, &MalformedURLError{Raw: raw, Reason: "no recognizable scheme"}
	default:
		return URL{}, &MalformedURLError{Raw: raw, Reason: fmt.Sprintf("scheme %q is not supported", u.Scheme)}
	}
}

func fromPath(raw string, scheme Scheme, host, p string) (URL, error) {
	if host == "" {
		return URL{}, &MalformedURLError{Raw: raw, Reason: "missing host"}
	}

	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	if len(parts) < 2 {
		return URL{}, &MalformedURLError{Raw: raw, Reason: "expected owner/repo path"}
	}

	owner := parts[0]
	repo := strings.TrimSuffix(parts[1], gitSuffix)
	if owner == "" || repo == "" {
		return URL{}, &MalformedURLError{Raw: raw, Reason: "empty owner or repository segment"}
	}

	return URL{
		Scheme: scheme,
		Host:   host,
		Owner:  normalizeOwner(owner),
		Repo:   repo,
	}, nil
}

// normalizeOwner uppercases the OCA organization, whatever case it was
// declared in. Other owners keep their case.
func normalizeOwner(owner string) string {
	if strings.EqualFold(owner, "oca") {
		return "OCA"
	}
	return owner
}

// Encode serializes u for the target scheme. The ".git" suffix is optional
// for http(s) and always present for ssh.
func (u URL) Encode(target Scheme, withSuffix bool) (string, error) {
	switch target {
	case SchemeHTTPS, SchemeHTTP:
		s := fmt.Sprintf("%s://%s/%s/%s", target, u.Host, u.Owner, u.Repo)
		if withSuffix {
			s += gitSuffix
		}
		return s, nil
	case SchemeSSH:
		return fmt.Sprintf("git@%s:%s/%s%s", u.Host, u.Owner, u.Repo, gitSuffix), nil
	default:
		return "", &UnsupportedSchemeError{Scheme: target}
	}
}

// Canonical returns the https://host/owner/repo form used for comparisons.
func (u URL) Canonical() string {
	return fmt.Sprintf("https://%s/%s/%s", u.Host, u.Owner, u.Repo)
}

// String returns the canonical form.
func (u URL) String() string { return u.Canonical() }

// Canonicalize parses raw and returns its canonical form.
func Canonicalize(raw string) (string, error) {
	u, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return u.Canonical(), nil
}

// Equivalent reports whether both URLs designate the same repository.
// Unparseable URLs are only equivalent when the raw strings are equal.
func Equivalent(a, b string) bool {
	ca, errA := Canonicalize(a)
	cb, errB := Canonicalize(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ca == cb
}
