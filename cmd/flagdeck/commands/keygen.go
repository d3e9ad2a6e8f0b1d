package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagdeck/flagdeck/internal/auth"
)

var keygenHash bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new SDK key",
	Long: `Generate a new SDK key for client applications. With --hash, a
bcrypt hash suitable for the server's SDK_KEY_HASH setting is printed
alongside the key; store the hash, hand out the key.

Examples:
  flagdeck keygen
  flagdeck keygen --hash`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := auth.GenerateSDKKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		fmt.Println(key)

		if keygenHash {
			hash, err := auth.HashSDKKey(key)
			if err != nil {
				return fmt.Errorf("failed to hash key: %w", err)
			}
			fmt.Println(hash)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().BoolVar(&keygenHash, "hash", false, "Also print a bcrypt hash for SDK_KEY_HASH")
}
