package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/creatorincome/wpup/internal/license"
)

// newLicenseClient is replaced in tests.
var newLicenseClient = license.NewClient

var checkLicenseCmd = &cobra.Command{
	Use:   "check-license <api_url> <license_key> <plugin_basename> <product_name> <email> <domain> <instance>",
	Short: "Print the latest licensed release of a plugin as JSON",
	Args:  cobra.ExactArgs(7),
	RunE: func(cmd *cobra.Command, args []string) error {
		rel, err := newLicenseClient().Check(context.Background(), &license.Request{
			APIURL:         args[0],
			LicenseKey:     args[1],
			PluginBasename: args[2],
			ProductName:    args[3],
			Email:          args[4],
			Domain:         args[5],
			Instance:       args[6],
		})
		if err != nil {
			return err
		}
		return outputJSON(cmd.OutOrStdout(), rel)
	},
}
