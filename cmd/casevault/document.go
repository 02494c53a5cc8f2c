package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/casevault/internal/models"
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage documents in the Vault store",
}

var docAddCmd = &cobra.Command{
	Use:     "add <student-id> <file>",
	Short:   "Store a file for a student",
	Example: `  casevault doc add 7f3c... foerderplan.pdf --title "Förderplan 2024"`,
	Args:    requireArgs(2),
	RunE:    runDocAdd,
}

var docListCmd = &cobra.Command{
	Use:   "list <student-id>",
	Short: "List a student's documents, newest first",
	Args:  requireArgs(1),
	RunE:  runDocList,
}

var docGetCmd = &cobra.Command{
	Use:   "get <document-id>",
	Short: "Write a document's content to a file",
	Args:  requireArgs(1),
	RunE:  runDocGet,
}

var docRmCmd = &cobra.Command{
	Use:   "rm <document-id>",
	Short: "Delete a document",
	Args:  requireArgs(1),
	RunE:  runDocRm,
}

var (
	docTitle  string
	docMIME   string
	docOutput string
)

func init() {
	rootCmd.AddCommand(docCmd)
	docCmd.AddCommand(docAddCmd, docListCmd, docGetCmd, docRmCmd)

	docAddCmd.Flags().StringVarP(&docTitle, "title", "t", "", "Document title (default: file name)")
	docAddCmd.Flags().StringVar(&docMIME, "mime", "", "MIME type (default: detected)")
	docGetCmd.Flags().StringVarP(&docOutput, "output", "o", "", "Output file (default: stored file name)")
}

func runDocAdd(cmd *cobra.Command, args []string) error {
	studentID, path := args[0], args[1]

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	meta := models.DocumentMeta{
		StudentID: studentID,
		Title:     docTitle,
		FileName:  filepath.Base(path),
		MIME:      docMIME,
	}
	if meta.Title == "" {
		meta.Title = meta.FileName
	}
	if meta.MIME == "" {
		meta.MIME = detectMIME(path, content)
	}

	return withStores(cmd.Context(), func(ctx context.Context) error {
		id, digest, err := apiClient.Documents.Add(ctx, content, meta)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(map[string]interface{}{"success": true, "id": id, "sha256": digest})
			return nil
		}
		printSuccess("Stored %s (%s) as %s", meta.FileName, formatBytes(int64(len(content))), id)
		printInfo("sha256 %s", digest)
		return nil
	})
}

func runDocList(cmd *cobra.Command, args []string) error {
	return withStores(cmd.Context(), func(ctx context.Context) error {
		docs, err := apiClient.Documents.ListByStudent(ctx, args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			if docs == nil {
				docs = []models.Document{}
			}
			printJSON(docs)
			return nil
		}
		if len(docs) == 0 {
			printInfo("No documents for %s.", args[0])
			return nil
		}

		printHeader(fmt.Sprintf("%d documents", len(docs)))
		for _, d := range docs {
			fmt.Printf("  %-36s  %s  %-30s %10s  %s\n",
				d.ID, d.CreatedAt.Format("2006-01-02 15:04"), d.Title, formatBytes(d.SizeBytes), d.FileName)
		}
		return nil
	})
}

func runDocGet(cmd *cobra.Command, args []string) error {
	return withStores(cmd.Context(), func(ctx context.Context) error {
		meta, err := apiClient.Documents.Meta(ctx, args[0])
		if err != nil {
			return err
		}
		content, err := apiClient.Documents.Blob(ctx, args[0])
		if err != nil {
			return err
		}

		out := docOutput
		if out == "" {
			out = meta.FileName
		}
		if err := os.WriteFile(out, content, 0600); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}

		if jsonOutput {
			printJSON(map[string]interface{}{"success": true, "path": out, "document": meta})
			return nil
		}
		printSuccess("Wrote %s (%s)", out, formatBytes(int64(len(content))))
		return nil
	})
}

func runDocRm(cmd *cobra.Command, args []string) error {
	return withStores(cmd.Context(), func(ctx context.Context) error {
		if _, err := apiClient.Documents.Meta(ctx, args[0]); err != nil {
			return err
		}
		if err := apiClient.Documents.Delete(ctx, args[0]); err != nil {
			return err
		}

		if jsonOutput {
			printJSON(map[string]interface{}{"success": true, "id": args[0]})
			return nil
		}
		printSuccess("Deleted document %s", args[0])
		return nil
	})
}

func detectMIME(path string, content []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(content)
}
