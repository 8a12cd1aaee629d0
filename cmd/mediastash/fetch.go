package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mediastash/internal/config"
	"mediastash/internal/remote"
	"mediastash/internal/store"
)

func newFetchCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		rating   string
		fileType string
		order    string
		date     string
		limit    int
		save     bool
		category string
	)

	cmd := &cobra.Command{
		Use:   "fetch [tags...]",
		Short: "Search the remote API, optionally saving results into a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newRemoteClient(cfg)
			defer client.Close()

			resp, err := client.SearchPosts(cmd.Context(), remote.Query{
				Tags:   args,
				Rating: rating,
				Type:   fileType,
				Order:  order,
				Date:   date,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if !save {
				if *jsonOutput {
					return writeJSON(resp)
				}
				for _, post := range resp.Posts {
					if err := writePlain("%d %s %s (%d bytes)\n", post.ID, post.Rating, post.File.URL, post.File.Size); err != nil {
						return err
					}
				}
				return nil
			}

			st, media, err := openMedia(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			saved := 0
			for _, post := range resp.Posts {
				body, err := client.Download(cmd.Context(), post.File.URL)
				if err != nil {
					return fmt.Errorf("downloading post %d: %w", post.ID, err)
				}
				name := fmt.Sprintf("post-%d.%s", post.ID, post.File.Extension)
				rec, err := media.AddFile(cmd.Context(), bytes.NewReader(body), name, category)
				if err != nil {
					if errors.Is(err, store.ErrDuplicateHash) {
						if err := writePlain("skipping post %d: already tracked\n", post.ID); err != nil {
							return err
						}
						continue
					}
					return err
				}
				saved++
				if !*jsonOutput {
					if err := writePlain("saved %s\n", rec.FilePath); err != nil {
						return err
					}
				}
			}

			if *jsonOutput {
				return writeJSON(map[string]int{"found": len(resp.Posts), "saved": saved})
			}
			return writePlain("saved %d of %d posts\n", saved, len(resp.Posts))
		},
	}

	cmd.Flags().StringVar(&rating, "rating", "", "rating filter (safe, questionable, explicit)")
	cmd.Flags().StringVar(&fileType, "type", "", "file extension filter")
	cmd.Flags().StringVar(&order, "order", "", "result order (score, random, ...)")
	cmd.Flags().StringVar(&date, "date", "", "date filter, e.g. >=2024-01-01")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	cmd.Flags().BoolVar(&save, "save", false, "download results into the category directory")
	cmd.Flags().StringVarP(&category, "category", "c", "meme", "category for saved files")
	return cmd
}
