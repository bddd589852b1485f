package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
)

// RunCreateMasterKey generates a 32-byte master key for the software HSM provider and
// prints it in MASTER_KEYS form. If keyID is empty it defaults to
// "master-key-YYYY-MM-DD". existing, when set, is the current MASTER_KEYS value: the
// new key is appended to it and becomes the active one, so material wrapped under
// older keys stays readable.
//
// Key material is zeroed from memory after encoding.
func RunCreateMasterKey(writer io.Writer, keyID, existing string) error {
	if keyID == "" {
		keyID = fmt.Sprintf("master-key-%s", time.Now().Format("2006-01-02"))
	}

	for entry := range strings.SplitSeq(existing, ",") {
		id, _, _ := strings.Cut(strings.TrimSpace(entry), ":")
		if id == keyID {
			return fmt.Errorf("master key %q already exists in MASTER_KEYS", keyID)
		}
	}

	masterKey, entry, err := cryptoDomain.GenerateMasterKey(keyID)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(masterKey.Key)

	masterKeys := entry
	if existing = strings.TrimSpace(existing); existing != "" {
		masterKeys = existing + "," + entry
	}

	_, _ = fmt.Fprintln(writer, "# Master Key Configuration (software HSM provider)")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "MASTER_KEYS=\"%s\"\n", masterKeys)
	_, _ = fmt.Fprintf(writer, "ACTIVE_MASTER_KEY_ID=\"%s\"\n", keyID)
	return nil
}
