package cli

import (
	"github.com/spf13/cobra"

	"github.com/creatorincome/wpup/internal/composer"
	"github.com/creatorincome/wpup/internal/fsops"
)

var composerCmd = &cobra.Command{
	Use:   "composer <name> <version> <type>",
	Short: "Write a composer.json for a plugin or theme",
	Long: `Write composer.json for package <vendor>/<name>. <type> is wordpress-plugin
or wordpress-theme. The vendor defaults to WPUP_COMPOSER_VENDOR.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		vendor, _ := cmd.Flags().GetString("vendor")
		dir, _ := cmd.Flags().GetString("path")

		if vendor == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			vendor = cfg.ComposerVendor
		}

		path, err := composer.Write(fsops.NewRealFS(), dir, args[0], args[1], args[2], composer.Options{
			Description: description,
			Vendor:      vendor,
		})
		if err != nil {
			return err
		}
		PrintSuccess("Wrote " + path)
		return nil
	},
}

func init() {
	composerCmd.Flags().String("description", "", "Package description")
	composerCmd.Flags().String("vendor", "", "Composer vendor namespace")
	composerCmd.Flags().String("path", ".", "Directory to write composer.json to")
}
