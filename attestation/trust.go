package attestation

import (
	"crypto"
	"crypto/x509"
	"fmt"

	"github.com/pylock/attest/internal/util"
	"github.com/pylock/attest/tuf"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
)

// Sigstore public-good instance TUF target names.
const (
	FulcioRootTarget         = "fulcio_v1.crt.pem"
	FulcioIntermediateTarget = "fulcio_intermediate_v1.crt.pem"
	RekorKeyTarget           = "rekor.pub"
)

// TrustRoots holds the certificate authorities and transparency log keys a
// verification run trusts.
type TrustRoots struct {
	FulcioRoots         *x509.CertPool
	FulcioIntermediates *x509.CertPool
	// RekorKeys is keyed by log ID (hex SHA-256 of the PKIX public key).
	RekorKeys map[string]crypto.PublicKey
}

func NewTrustRoots() *TrustRoots {
	return &TrustRoots{
		FulcioRoots:         x509.NewCertPool(),
		FulcioIntermediates: x509.NewCertPool(),
		RekorKeys:           map[string]crypto.PublicKey{},
	}
}

func (t *TrustRoots) AddFulcioRootPEM(pemBytes []byte) error {
	certs, err := cryptoutils.UnmarshalCertificatesFromPEM(pemBytes)
	if err != nil {
		return fmt.Errorf("failed to parse fulcio root certificate: %w", err)
	}
	for _, cert := range certs {
		t.FulcioRoots.AddCert(cert)
	}
	return nil
}

func (t *TrustRoots) AddFulcioIntermediatePEM(pemBytes []byte) error {
	certs, err := cryptoutils.UnmarshalCertificatesFromPEM(pemBytes)
	if err != nil {
		return fmt.Errorf("failed to parse fulcio intermediate certificate: %w", err)
	}
	for _, cert := range certs {
		t.FulcioIntermediates.AddCert(cert)
	}
	return nil
}

func (t *TrustRoots) AddRekorKeyPEM(pemBytes []byte) error {
	pub, err := cryptoutils.UnmarshalPEMToPublicKey(pemBytes)
	if err != nil {
		return fmt.Errorf("failed to parse rekor public key: %w", err)
	}
	keyID, err := util.KeyID(pub)
	if err != nil {
		return err
	}
	t.RekorKeys[keyID] = pub
	return nil
}

// LoadTUFTrustRoots fetches the Fulcio roots and Rekor key from a TUF
// repository, normally the sigstore public-good instance.
func LoadTUFTrustRoots(downloader tuf.Downloader) (*TrustRoots, error) {
	roots := NewTrustRoots()

	target, err := downloader.DownloadTarget(FulcioRootTarget, "")
	if err != nil {
		return nil, fmt.Errorf("failed to download fulcio root: %w", err)
	}
	if err := roots.AddFulcioRootPEM(target.Data); err != nil {
		return nil, err
	}

	// not every trust root revision ships an intermediate
	if target, err = downloader.DownloadTarget(FulcioIntermediateTarget, ""); err == nil {
		if err := roots.AddFulcioIntermediatePEM(target.Data); err != nil {
			return nil, err
		}
	}

	target, err = downloader.DownloadTarget(RekorKeyTarget, "")
	if err != nil {
		return nil, fmt.Errorf("failed to download rekor key: %w", err)
	}
	if err := roots.AddRekorKeyPEM(target.Data); err != nil {
		return nil, err
	}
	return roots, nil
}
