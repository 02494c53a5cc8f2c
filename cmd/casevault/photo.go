package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/casevault/internal/models"
)

var photoCmd = &cobra.Command{
	Use:   "photo",
	Short: "Manage student photos in the Vault store",
}

var photoSetCmd = &cobra.Command{
	Use:   "set <student-id> <file>",
	Short: "Store or replace a student's photo",
	Args:  requireArgs(2),
	RunE:  runPhotoSet,
}

var photoGetCmd = &cobra.Command{
	Use:   "get <student-id>",
	Short: "Write a student's photo to a file",
	Args:  requireArgs(1),
	RunE:  runPhotoGet,
}

var photoRmCmd = &cobra.Command{
	Use:   "rm <student-id>",
	Short: "Delete a student's photo",
	Args:  requireArgs(1),
	RunE:  runPhotoRm,
}

var (
	photoMIME   string
	photoOutput string
)

func init() {
	rootCmd.AddCommand(photoCmd)
	photoCmd.AddCommand(photoSetCmd, photoGetCmd, photoRmCmd)

	photoSetCmd.Flags().StringVar(&photoMIME, "mime", "", "MIME type (default: detected)")
	photoGetCmd.Flags().StringVarP(&photoOutput, "output", "o", "", "Output file (required)")
	_ = photoGetCmd.MarkFlagRequired("output")
}

func runPhotoSet(cmd *cobra.Command, args []string) error {
	studentID, path := args[0], args[1]

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	mimeType := photoMIME
	if mimeType == "" {
		mimeType = detectMIME(path, content)
	}

	return withStores(cmd.Context(), func(ctx context.Context) error {
		if err := apiClient.Documents.SetPhoto(ctx, models.NewPhoto{
			StudentID: studentID,
			MIME:      mimeType,
			Content:   content,
		}); err != nil {
			return err
		}

		if jsonOutput {
			printJSON(map[string]interface{}{"success": true, "student_id": studentID, "mime": mimeType})
			return nil
		}
		printSuccess("Stored photo for %s (%s, %s)", studentID, mimeType, formatBytes(int64(len(content))))
		return nil
	})
}

func runPhotoGet(cmd *cobra.Command, args []string) error {
	return withStores(cmd.Context(), func(ctx context.Context) error {
		photo, err := apiClient.Documents.Photo(ctx, args[0])
		if err != nil {
			return err
		}
		if err := os.WriteFile(photoOutput, photo.Bytes, 0600); err != nil {
			return fmt.Errorf("write %s: %w", photoOutput, err)
		}

		if jsonOutput {
			printJSON(map[string]interface{}{"success": true, "path": photoOutput, "photo": photo})
			return nil
		}
		printSuccess("Wrote %s (%s)", photoOutput, photo.MIME)
		return nil
	})
}

func runPhotoRm(cmd *cobra.Command, args []string) error {
	return withStores(cmd.Context(), func(ctx context.Context) error {
		if err := apiClient.Documents.DeletePhoto(ctx, args[0]); err != nil {
			return err
		}

		if jsonOutput {
			printJSON(map[string]interface{}{"success": true, "student_id": args[0]})
			return nil
		}
		printSuccess("Deleted photo of %s", args[0])
		return nil
	})
}
