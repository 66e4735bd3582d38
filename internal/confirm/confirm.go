// Package confirm isolates the install engine's TOFU interaction points
// behind a Confirmer capability, per spec section 9's design note, so the
// engine is testable without a TTY and can be driven non-interactively by
// --force-yes.
package confirm

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

// Confirmer answers the three trust-on-first-use prompts the install engine
// raises while verifying a downloaded package's signature (spec section
// 4.D).
type Confirmer interface {
	// AskTrustNewKey is raised when a publisher is signing with a key
	// the store has never seen before.
	AskTrustNewKey(userName, keyID string) (bool, error)
	// AskReplaceKey is raised when a publisher signs with a key that
	// differs from the one already trusted for them.
	AskReplaceKey(userName, oldKeyID, newKeyID string) (bool, error)
	// AskAcceptMissingSignature is raised when a publisher has a trusted
	// signing key on file but the current download carries no signature
	// at all. Spec section 4.D: warn and block unless --force-yes.
	AskAcceptMissingSignature(userName string) (bool, error)
}

// Interactive prompts on stdin/stdout via survey.
type Interactive struct{}

func (Interactive) AskTrustNewKey(userName, keyID string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Trust new signing key %s for publisher %q?", keyID, userName),
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (Interactive) AskReplaceKey(userName, oldKeyID, newKeyID string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Publisher %q previously signed with key %s; this package is signed with a different key %s. Trust the new key?", userName, oldKeyID, newKeyID),
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (Interactive) AskAcceptMissingSignature(userName string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Publisher %q has a trusted signing key but this download is unsigned. Install anyway?", userName),
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// NonInteractive answers every prompt with a fixed decision, driven by
// --force-yes/-y. It never overrides cryptographic verification or key
// revocation, which the caller checks independently (spec section 4.D:
// "--force-yes auto-accepts TOFU prompts but never accepts a signature
// that fails cryptographic verification, and never accepts a revoked
// key").
type NonInteractive struct {
	ForceYes bool
}

func (n NonInteractive) AskTrustNewKey(string, string) (bool, error) {
	return n.ForceYes, nil
}

func (n NonInteractive) AskReplaceKey(string, string, string) (bool, error) {
	return n.ForceYes, nil
}

func (n NonInteractive) AskAcceptMissingSignature(string) (bool, error) {
	return n.ForceYes, nil
}
