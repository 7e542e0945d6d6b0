package config

import (
	"strings"

	validation "github.com/jellydator/validation"
	"golang.org/x/net/http/httpguts"

	"github.com/vitalvas/cavage/httpsig"
	"github.com/vitalvas/cavage/pki"
)

// headerName accepts a header field name or the (request-target)
// pseudo-header.
var headerName = validation.By(func(value any) error {
	name, _ := value.(string)
	if strings.EqualFold(name, httpsig.RequestTarget) || httpguts.ValidHeaderFieldName(name) {
		return nil
	}

	return validation.NewError("validation_header_name", "must be a header name or (request-target)")
})

// Validate checks the whole document.
func (f File) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Canonical),
		validation.Field(&f.Policy),
		validation.Field(&f.Targets, validation.By(uniqueTargetNames)),
		validation.Field(&f.Clients, validation.By(uniqueKeyIDs)),
	)
}

// Validate checks the canonicalization options.
func (c Canonical) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DateHeader, validation.When(c.DateHeader != "", headerName)),
		validation.Field(&c.DigestEncoding, validation.By(func(any) error {
			if _, err := httpsig.ParseDigestEncoding(c.DigestEncoding); err != nil {
				return validation.NewError("validation_digest_encoding", "must be hex or base64")
			}

			return nil
		})),
	)
}

// Validate checks method names and header lists.
func (p Policy) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Default, validation.By(validateHeadersConfig)),
		validation.Field(&p.Methods,
			validation.By(validateMethods),
			validation.Each(validation.By(validateHeadersConfig)),
		),
	)
}

// Validate checks one outbound target.
func (t Target) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.KeyID, validation.Required),
		validation.Field(&t.Algorithm, validation.Required),
		validation.Field(&t.Carrier, validation.By(func(any) error {
			if _, err := httpsig.ParseCarrier(t.Carrier); err != nil {
				return validation.NewError("validation_carrier", "must be signature or authorization")
			}

			return nil
		})),
		validation.Field(&t.Keys, validation.By(func(any) error {
			if t.Keys.PrivateKeyPath == "" {
				return validation.NewError("validation_private_key", "key-path is required")
			}

			return nil
		})),
		validation.Field(&t.Policy),
		validation.Field(&t.ResponseHeaders, validation.Each(headerName)),
	)
}

// Validate checks one inbound client.
func (c Client) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.KeyID, validation.Required),
		validation.Field(&c.Keys, validation.By(func(any) error {
			if !hasPublicKey(c.Keys) {
				return validation.NewError("validation_public_key", "public-key-path, cert-chain-path or key-path is required")
			}

			return nil
		})),
	)
}

func hasPublicKey(s pki.Source) bool {
	return s.PublicKeyPath != "" || s.CertChainPath != "" || s.PrivateKeyPath != ""
}

func validateHeadersConfig(value any) error {
	cfg, ok := value.(httpsig.HeadersConfig)
	if !ok {
		return validation.NewError("validation_headers_config", "must be a headers config")
	}

	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Always, validation.Each(headerName)),
		validation.Field(&cfg.IfPresent, validation.Each(headerName)),
	)
}

// validateMethods checks that every key is an HTTP token. Methods share
// the token grammar with header field names.
func validateMethods(value any) error {
	methods, _ := value.(map[string]httpsig.HeadersConfig)
	for method := range methods {
		if !httpguts.ValidHeaderFieldName(method) {
			return validation.NewError("validation_method", "method "+method+" is not a valid token")
		}
	}

	return nil
}

func uniqueTargetNames(value any) error {
	targets, _ := value.([]Target)

	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if _, dup := seen[t.Name]; dup {
			return validation.NewError("validation_duplicate_target", "duplicate target "+t.Name)
		}

		seen[t.Name] = struct{}{}
	}

	return nil
}

func uniqueKeyIDs(value any) error {
	clients, _ := value.([]Client)

	seen := make(map[string]struct{}, len(clients))
	for _, c := range clients {
		if _, dup := seen[c.KeyID]; dup {
			return validation.NewError("validation_duplicate_key_id", "duplicate key id "+c.KeyID)
		}

		seen[c.KeyID] = struct{}{}
	}

	return nil
}
