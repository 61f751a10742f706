package main

import (
	"os"
	"strings"

	"virtualrag-be/internal/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	allowed := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed = append(allowed, ext)
	}

	render := client.NewRenderer(os.Stdout, userName)
	color.Cyan("Connecting to %s...", serverURL)

	d, err := client.Dial(ctx, client.Options{
		ServerURL:         serverURL,
		Password:          password,
		AllowedExtensions: allowed,
		MaxFileSizeBytes:  int64(maxFileSize) * 1024 * 1024,
	}, render)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Authenticate(ctx); err != nil {
		return err
	}
	return d.Run(ctx, os.Stdin)
}
