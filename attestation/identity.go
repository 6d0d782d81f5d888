package attestation

import (
	"crypto/x509"
	"fmt"
	"strconv"

	"github.com/sigstore/fulcio/pkg/certificate"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
)

// Identity is the verified signer claim extracted from a valid attestation:
// the OIDC issuer, the signing identity, and opaque build metadata carried
// through to the lock file.
type Identity struct {
	Issuer        string
	Subject       string
	BuildMetadata map[string]string
}

// identityFromCertificate reads the signer identity out of a Fulcio leaf
// certificate: issuer from the certificate extensions, subject from the SAN.
func identityFromCertificate(cert *x509.Certificate) (*Identity, error) {
	exts, err := certificate.ParseExtensions(cert.Extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate extensions: %w", err)
	}
	if exts.Issuer == "" {
		return nil, fmt.Errorf("certificate carries no issuer extension")
	}
	sans := cryptoutils.GetSubjectAlternateNames(cert)
	if len(sans) == 0 {
		return nil, fmt.Errorf("certificate carries no subject alternative name")
	}
	identity := &Identity{
		Issuer:        exts.Issuer,
		Subject:       sans[0],
		BuildMetadata: map[string]string{},
	}
	addMetadata(identity.BuildMetadata, "source-repository", exts.SourceRepositoryURI)
	addMetadata(identity.BuildMetadata, "source-ref", exts.SourceRepositoryRef)
	addMetadata(identity.BuildMetadata, "source-digest", exts.SourceRepositoryDigest)
	addMetadata(identity.BuildMetadata, "build-config", exts.BuildConfigURI)
	addMetadata(identity.BuildMetadata, "run-invocation", exts.RunInvocationURI)
	return identity, nil
}

// attachPublisher folds the bundle's trusted-publisher claims into the
// identity's build metadata. Claims are opaque passthrough; null claims are
// dropped the way the index API omits them.
func (id *Identity) attachPublisher(pub *Publisher) {
	if pub.Kind != "" {
		addMetadata(id.BuildMetadata, "publisher-kind", pub.Kind)
	}
	for key, value := range pub.Claims {
		switch v := value.(type) {
		case string:
			addMetadata(id.BuildMetadata, "publisher-"+key, v)
		case bool:
			addMetadata(id.BuildMetadata, "publisher-"+key, strconv.FormatBool(v))
		case float64:
			addMetadata(id.BuildMetadata, "publisher-"+key, strconv.FormatFloat(v, 'g', -1, 64))
		case nil:
			// omitted
		}
	}
}

func addMetadata(meta map[string]string, key, value string) {
	if value != "" {
		meta[key] = value
	}
}
