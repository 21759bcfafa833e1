package main

import (
	"crypto/md5"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newHashkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hashkey",
		Short: "Hash a passkey for use as the master digest",
		Long: `Reads a passkey from the terminal without echo and prints its MD5
digest. Build with -ldflags "-X .../internal/auth.MasterDigest=<digest>"
to bake the result into the binary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(os.Stderr, "Passkey: ")
			key, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("read passkey: %w", err)
			}
			if len(key) == 0 {
				return fmt.Errorf("empty passkey")
			}
			fmt.Printf("%x\n", md5.Sum(key))
			return nil
		},
	}
}
