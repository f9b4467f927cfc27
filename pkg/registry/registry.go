// Package registry talks to the container registry (Harbor) of the platform.
package registry

import (
	"fmt"
	"net/url"
	"strings"

	xe "github.com/opst/pht-central/pkg/errors"
)

// Registry is a connection to the registry.
type Registry struct {
	// API endpoint, like "https://harbor.example.com".
	URL *url.URL

	User     string
	Password string
}

// ParseConnectionString parses "<user>:<password>@<url>".
//
// The password may contain '@' and ':'. The url should have a scheme.
func ParseConnectionString(s string) (Registry, error) {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return Registry{}, xe.Errorf(xe.Validation, "registry connection string has no credential")
	}
	cred, host := s[:at], s[at+1:]

	user, password, ok := strings.Cut(cred, ":")
	if !ok || user == "" {
		return Registry{}, xe.Errorf(xe.Validation, "registry connection string has malformed credential")
	}

	u, err := url.Parse(host)
	if err != nil {
		return Registry{}, xe.Classify(xe.Validation, "registry connection string has malformed url", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Registry{}, xe.Errorf(xe.Validation, "registry url should be like https://host: %s", host)
	}

	return Registry{URL: u, User: user, Password: password}, nil
}

// Host is the registry host in image references.
func (r Registry) Host() string {
	return r.URL.Host
}

// Projects are deployment-wide projects of the registry.
type Projects struct {
	// master images, which trains are built from.
	Master string

	// trains waiting for their routes.
	Incoming string

	// trains which have finished their routes.
	Outgoing string
}

// Specials lists the projects, in the order of master, incoming and outgoing.
func (p Projects) Specials() []string {
	return []string{p.Master, p.Incoming, p.Outgoing}
}

// ResultImage returns the fully qualified reference of the image of a finished train.
func ResultImage(r Registry, projects Projects, trainId string) string {
	return fmt.Sprintf("%s/%s/%s:latest", r.Host(), projects.Outgoing, trainId)
}
