package credential

import "time"

// Delegated is a short-lived credential obtained by assuming a role.
// It lives only in process memory for the duration of a local run and
// is never written to disk or to the process environment.
type Delegated struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiry          time.Time
}

// Valid reports whether the credential is complete and not yet expired.
func (d *Delegated) Valid() bool {
	if d == nil {
		return false
	}
	return d.AccessKeyID != "" && d.SecretAccessKey != "" &&
		d.SessionToken != "" && d.Expiry.After(time.Now())
}

// ExpiresIn is the remaining lifetime, zero when already expired.
func (d *Delegated) ExpiresIn() time.Duration {
	left := time.Until(d.Expiry)
	if left < 0 {
		return 0
	}
	return left
}

// Env returns the credential as the environment variables a container
// run expects. The caller decides whether to print them; nothing here
// mutates the process environment.
func (d *Delegated) Env() map[string]string {
	return map[string]string{
		"AWS_ACCESS_KEY_ID":     d.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": d.SecretAccessKey,
		"AWS_SESSION_TOKEN":     d.SessionToken,
	}
}
