package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrNotFound = errors.New("cookie: not found")
	ErrNoSecret  = errors.New("cookie: secret required")
	ErrBadSecret = errors.New("cookie: secret must be 32+ bytes")
	ErrBadSig    = errors.New("cookie: invalid signature")
	ErrDecrypt   = errors.New("cookie: decryption failed")
)

// minSecretLen is the shortest secret the jar signs and encrypts with.
const minSecretLen = 32

// CheckSecret reports ErrBadSecret for secrets too short to use.
func CheckSecret(secret string) error {
	if len(secret) < minSecretLen {
		return ErrBadSecret
	}
	return nil
}

// foreverAge is five years, in seconds.
const foreverAge = 5 * 365 * 24 * 3600

// Config holds default cookie attributes.
type Config struct {
	Domain   string        `yaml:"domain"`
	Path     string        `yaml:"path"`
	SameSite http.SameSite `yaml:"-"`
	Secure   bool          `yaml:"secure"`
	// HTTPOnly defaults to true unless AllowScripts is set.
	AllowScripts bool `yaml:"allow_scripts"`
}

// Attr overrides one attribute of a single cookie.
type Attr func(*http.Cookie)

func MaxAge(seconds int) Attr { return func(c *http.Cookie) { c.MaxAge = seconds } }
func Path(p string) Attr { return func(c *http.Cookie) { c.Path = p } }
func Domain(d string) Attr { return func(c *http.Cookie) { c.Domain = d } }
func Secure(on bool) Attr { return func(c *http.Cookie) { c.Secure = on } }
func HTTPOnly(on bool) Attr { return func(c *http.Cookie) { c.HttpOnly = on } }
func SameSite(s http.SameSite) Attr { return func(c *http.Cookie) { c.SameSite = s } }

// Jar writes cookies with shared defaults.
type Jar struct {
	cfg  Config
	keys [][]byte // keys[0] writes, all keys read
}

// New creates a Jar. The first secret signs and encrypts; the others are
// only used to read cookies written with older keys. Secrets rejected by
// CheckSecret are ignored, so callers that take keys from configuration
// should check them first.
func New(cfg Config, secrets ...string) *Jar {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	j := &Jar{cfg: cfg}
	for _, s := range secrets {
		if CheckSecret(s) == nil {
			j.keys = append(j.keys, []byte(s))
		}
	}
	return j
}

// HasSecret reports whether signed and encrypted cookies are available.
func (j *Jar) HasSecret() bool { return len(j.keys) > 0 }

// Make builds a cookie with the jar defaults and attrs applied.
func (j *Jar) Make(name, value string, attrs ...Attr) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     j.cfg.Path,
		Domain:   j.cfg.Domain,
		Secure:   j.cfg.Secure,
		HttpOnly: !j.cfg.AllowScripts,
		SameSite: j.cfg.SameSite,
	}
	for _, a := range attrs {
		a(c)
	}
	return c
}

func (j *Jar) Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrNotFound
		}
		return "", err
	}
	return c.Value, nil
}

func (j *Jar) Set(w http.ResponseWriter, name, value string, attrs ...Attr) {
	http.SetCookie(w, j.Make(name, value, attrs...))
}

// Forever sets a cookie that lasts five years.
func (j *Jar) Forever(w http.ResponseWriter, name, value string, attrs ...Attr) {
	j.Set(w, name, value, append([]Attr{MaxAge(foreverAge)}, attrs...)...)
}

// Forget expires a cookie. Path and domain attrs must match the original.
func (j *Jar) Forget(w http.ResponseWriter, name string, attrs ...Attr) {
	j.Set(w, name, "", append(attrs, MaxAge(-1))...)
}

// SetSigned writes base64(value).base64(hmac(name|value)).
func (j *Jar) SetSigned(w http.ResponseWriter, name, value string, attrs ...Attr) error {
	if !j.HasSecret() {
		return ErrNoSecret
	}
	enc := base64.RawURLEncoding
	j.Set(w, name, enc.EncodeToString([]byte(value))+"."+enc.EncodeToString(sign(j.keys[0], name, value)), attrs...)
	return nil
}

func (j *Jar) GetSigned(r *http.Request, name string) (string, error) {
	if !j.HasSecret() {
		return "", ErrNoSecret
	}
	raw, err := j.Get(r, name)
	if err != nil {
		return "", err
	}
	rawValue, rawSig, ok := strings.Cut(raw, ".")
	if !ok {
		return "", ErrBadSig
	}
	value, err1 := base64.RawURLEncoding.DecodeString(rawValue)
	sig, err2 := base64.RawURLEncoding.DecodeString(rawSig)
	if err1 != nil || err2 != nil {
		return "", ErrBadSig
	}
	for _, key := range j.keys {
		if hmac.Equal(sig, sign(key, name, string(value))) {
			return string(value), nil
		}
	}
	return "", ErrBadSig
}

// SetEncrypted writes an AES-GCM sealed value.
func (j *Jar) SetEncrypted(w http.ResponseWriter, name, value string, attrs ...Attr) error {
	sealed, err := j.Encrypt(name, value)
	if err != nil {
		return err
	}
	j.Set(w, name, sealed, attrs...)
	return nil
}

func (j *Jar) GetEncrypted(r *http.Request, name string) (string, error) {
	if !j.HasSecret() {
		return "", ErrNoSecret
	}
	raw, err := j.Get(r, name)
	if err != nil {
		return "", err
	}
	return j.Decrypt(name, raw)
}

// Encrypt seals value for the cookie name and encodes it for transport.
func (j *Jar) Encrypt(name, value string) (string, error) {
	if !j.HasSecret() {
		return "", ErrNoSecret
	}
	sealed, err := seal(j.keys[0], name, []byte(value))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt for the same cookie name. It
// serves values echoed back outside the cookie header, such as
// X-XSRF-TOKEN.
func (j *Jar) Decrypt(name, raw string) (string, error) {
	if !j.HasSecret() {
		return "", ErrNoSecret
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return "", ErrDecrypt
	}
	for _, key := range j.keys {
		if plain, err := open(key, name, data); err == nil {
			return string(plain), nil
		}
	}
	return "", ErrDecrypt
}

func sign(key []byte, name, value string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(name))
	mac.Write([]byte{'|'})
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

func aead(key []byte) (cipher.AEAD, error) {
	k := sha256.Sum256(key)
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal returns nonce||ciphertext with the cookie name as associated data.
func seal(key []byte, name string, plain []byte) ([]byte, error) {
	a, err := aead(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, a.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return a.Seal(nonce, nonce, plain, []byte(name)), nil
}

func open(key []byte, name string, data []byte) ([]byte, error) {
	a, err := aead(key)
	if err != nil {
		return nil, err
	}
	if len(data) < a.NonceSize() {
		return nil, ErrDecrypt
	}
	return a.Open(nil, data[:a.NonceSize()], data[a.NonceSize():], []byte(name))
}
