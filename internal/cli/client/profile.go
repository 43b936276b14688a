package client

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ProfileCmd creates the profile command with its update and image subcommands.
func ProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			resp, err := api.Get("/users/profile")
			if err != nil {
				return fmt.Errorf("failed to get profile: %w", err)
			}
			return printProfile(cmd.OutOrStdout(), resp, outputJSON)
		},
	}

	cmd.AddCommand(profileUpdateCmd())
	cmd.AddCommand(profileImageCmd())

	return cmd
}

func profileUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
		Long: `Updates only the fields whose flags are given.

Examples:
  docchat profile update --name "Ada Lovelace" --location London
  docchat profile update --bio ""`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runProfileUpdate(api, cmd, cmd.OutOrStdout(), outputJSON)
		},
	}

	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("location", "", "Location")
	cmd.Flags().String("bio", "", "Short bio")

	return cmd
}

func runProfileUpdate(api *APIClient, cmd *cobra.Command, out io.Writer, outputJSON bool) error {
	update := map[string]string{}
	for _, field := range []string{"name", "phone", "location", "bio"} {
		if cmd.Flags().Changed(field) {
			value, _ := cmd.Flags().GetString(field)
			update[field] = value
		}
	}
	if len(update) == 0 {
		return fmt.Errorf("nothing to update (pass at least one of --name, --phone, --location, --bio)")
	}

	resp, err := api.Patch("/users/profile", update)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return printProfile(out, resp, outputJSON)
}

func profileImageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "image <file>",
		Short: "Upload a JPEG profile image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			resp, err := api.PostFile("/files/upload/profile-image", args[0], nil)
			if err != nil {
				return fmt.Errorf("failed to upload profile image: %w", err)
			}
			return printProfile(cmd.OutOrStdout(), resp, outputJSON)
		},
	}
}

func printProfile(out io.Writer, resp *APIResponse, outputJSON bool) error {
	var profile Profile
	if err := decodeData(resp, &profile); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, profile)
	}

	fmt.Fprintf(out, "Name:     %s\n", profile.Name)
	fmt.Fprintf(out, "Email:    %s\n", profile.Email)
	if profile.Phone != "" {
		fmt.Fprintf(out, "Phone:    %s\n", profile.Phone)
	}
	if profile.Location != "" {
		fmt.Fprintf(out, "Location: %s\n", profile.Location)
	}
	if profile.Bio != "" {
		fmt.Fprintf(out, "Bio:      %s\n", profile.Bio)
	}
	if profile.ProfileImage != "" {
		fmt.Fprintf(out, "Image:    %s\n", profile.ProfileImage)
	}
	fmt.Fprintf(out, "ID:       %s\n", profile.ID)
	return nil
}
