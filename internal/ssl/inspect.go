package ssl

import (
	"crypto"
	"os"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"

	"github.com/ksyq12/certglue/internal/errors"
)

// FileState describes one bundle file on disk
type FileState struct {
	Path    string    `json:"path"`
	Exists  bool      `json:"exists"`
	ModTime time.Time `json:"mod_time,omitzero"`
	Size    int64     `json:"size,omitempty"`
}

// CertInfo summarizes the installed certificate
type CertInfo struct {
	FullChain FileState `json:"fullchain"`
	PrivKey   FileState `json:"privkey"`
	Combined  FileState `json:"combined"`

	Subject    string    `json:"subject,omitempty"`
	Issuer     string    `json:"issuer,omitempty"`
	DNSNames   []string  `json:"dns_names,omitempty"`
	NotBefore  time.Time `json:"not_before,omitzero"`
	NotAfter   time.Time `json:"not_after,omitzero"`
	ChainCerts int       `json:"chain_certs"`
	KeyMatches bool      `json:"key_matches"`

	// CombinedStale is set when the chain is newer than the combined file.
	CombinedStale bool `json:"combined_stale"`
}

// ExpiresIn returns the time left until NotAfter.
func (i *CertInfo) ExpiresIn(now time.Time) time.Duration {
	return i.NotAfter.Sub(now)
}

// Inspect reads the bundle files and parses the leaf certificate.
// A missing chain is reported as ErrArtifactMissing; file states are
// still filled in.
func Inspect(paths CertPaths) (*CertInfo, error) {
	info := &CertInfo{
		FullChain: stat(paths.FullChain),
		PrivKey:   stat(paths.PrivKey),
		Combined:  stat(paths.Combined),
	}
	if info.Combined.Exists && info.FullChain.Exists {
		info.CombinedStale = info.FullChain.ModTime.After(info.Combined.ModTime)
	}

	if !info.FullChain.Exists {
		return info, errors.WrapSubject(errors.ErrCodeArtifact, paths.FullChain, "certificate chain not found", nil)
	}

	chainPEM, err := os.ReadFile(paths.FullChain)
	if err != nil {
		return info, errors.WrapSubject(errors.ErrCodeArtifact, paths.FullChain, "failed to read chain", err)
	}
	certs, err := certcrypto.ParsePEMBundle(chainPEM)
	if err != nil {
		return info, errors.WrapSubject(errors.ErrCodeArtifact, paths.FullChain, "failed to parse chain", err)
	}

	leaf := certs[0]
	info.ChainCerts = len(certs)
	info.Subject = leaf.Subject.CommonName
	info.Issuer = leaf.Issuer.CommonName
	info.DNSNames = leaf.DNSNames
	info.NotBefore = leaf.NotBefore
	info.NotAfter = leaf.NotAfter

	if !info.PrivKey.Exists {
		return info, nil
	}
	keyPEM, err := os.ReadFile(paths.PrivKey)
	if err != nil {
		return info, errors.WrapSubject(errors.ErrCodeArtifact, paths.PrivKey, "failed to read private key", err)
	}
	key, err := certcrypto.ParsePEMPrivateKey(keyPEM)
	if err != nil {
		return info, errors.WrapSubject(errors.ErrCodeArtifact, paths.PrivKey, "failed to parse private key", err)
	}
	info.KeyMatches = publicKeyMatches(leaf.PublicKey, key)

	return info, nil
}

func publicKeyMatches(pub crypto.PublicKey, key crypto.PrivateKey) bool {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return false
	}
	eq, ok := pub.(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return false
	}
	return eq.Equal(signer.Public())
}

func stat(path string) FileState {
	fs := FileState{Path: path}
	if st, err := os.Stat(path); err == nil {
		fs.Exists = true
		fs.ModTime = st.ModTime()
		fs.Size = st.Size()
	}
	return fs
}
