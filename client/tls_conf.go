package client

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/asiminischi/informix-proxy/errwrap"
)

// TLSConfig configures TLS for connections to the proxy. A zero value means
// plaintext.
type TLSConfig struct {
	TrustedCertsPath string `help:"Path to a PEM encoded file containing certificate(s) of trusted servers"`
	CertPath         string `help:"Path to a PEM encoded file containing the client certificate"`
	KeyPath          string `help:"Path to a PEM encoded file containing the client private key"`
	NoVerify         bool   `help:"Disable server certificate verification. WARNING use only for testing"`
}

func (t *TLSConfig) enabled() bool {
	return t.TrustedCertsPath != "" || t.CertPath != "" || t.NoVerify
}

func (t *TLSConfig) ToGoTlsConfig() (*tls.Config, error) {
	if !t.enabled() {
		return nil, nil
	}
	tlsConf := &tls.Config{}
	if t.NoVerify {
		tlsConf.InsecureSkipVerify = true
	}
	if t.TrustedCertsPath != "" {
		pemBytes, err := os.ReadFile(t.TrustedCertsPath)
		if err != nil {
			return nil, errwrap.WithStack(err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, errwrap.Errorf("no certificates found in %s", t.TrustedCertsPath)
		}
		tlsConf.RootCAs = pool
	}
	if t.CertPath != "" {
		keyPair, err := tls.LoadX509KeyPair(t.CertPath, t.KeyPath)
		if err != nil {
			return nil, errwrap.WithStack(err)
		}
		tlsConf.Certificates = []tls.Certificate{keyPair}
	}
	return tlsConf, nil
}
