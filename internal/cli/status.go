package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/storage"
	"github.com/spf13/cobra"
)

// statusResponse is the output of the status command.
type statusResponse struct {
	Location       string            `json:"location"`
	Backend        string            `json:"backend"`
	Indexed        bool              `json:"indexed"`
	Manifest       *storage.Manifest `json:"manifest,omitempty"`
	DiskUsageBytes *int64            `json:"disk_usage_bytes,omitempty"`
	APIKeys        map[string]bool   `json:"api_keys"`
	Config         statusConfig      `json:"config"`
}

type statusConfig struct {
	Provider     string `json:"embedding_provider"`
	Model        string `json:"embedding_model,omitempty"`
	Dimensions   int    `json:"embedding_dimensions,omitempty"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	Strategy     string `json:"chunk_strategy"`
	K            int    `json:"k"`
	Metric       string `json:"metric"`
	Hybrid       bool   `json:"hybrid"`
}

// apiKeys reports which provider credentials are available.
func apiKeys(cfg *config.Config) map[string]bool {
	return map[string]bool{
		"openai": cfg.Embedding.APIKey != "" || os.Getenv("OPENAI_API_KEY") != "",
	}
}

func newStatusCommand(opts *globalOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted index and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			backend, err := storage.NewRegistry().New(cfg.Storage.Backend, nil)
			if err != nil {
				return err
			}
			status := statusResponse{
				Location: cfg.Storage.Location,
				Backend:  backend.Name(),
				APIKeys:  apiKeys(cfg),
				Config: statusConfig{
					Provider:     cfg.Embedding.Provider,
					Model:        cfg.Embedding.Model,
					Dimensions:   cfg.Embedding.Dimensions,
					ChunkSize:    cfg.Chunking.ChunkSize,
					ChunkOverlap: cfg.Chunking.ChunkOverlap,
					Strategy:     cfg.Chunking.Strategy,
					K:            cfg.Retrieval.K,
					Metric:       cfg.Retrieval.Metric,
					Hybrid:       cfg.Retrieval.Hybrid,
				},
			}
			m, err := backend.ReadManifest(cmd.Context(), cfg.Storage.Location)
			switch {
			case err == nil:
				status.Indexed = true
				status.Manifest = m
			case !errors.Is(err, errs.ErrNotFound):
				return err
			}
			if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.Location); err == nil {
				status.DiskUsageBytes = &diskBytes
			}

			if format == OutputJSON {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			writeStatusText(cmd.OutOrStdout(), &status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func writeStatusText(w io.Writer, s *statusResponse) {
	fmt.Fprintf(w, "location:           %s\n", s.Location)
	fmt.Fprintf(w, "backend:            %s\n", s.Backend)
	if s.Manifest == nil {
		fmt.Fprintln(w, "indexed:            false   # run \"regqa index\" to build one")
	} else {
		m := s.Manifest
		fmt.Fprintf(w, "index_id:           %s\n", m.IndexID)
		fmt.Fprintf(w, "entries:            %d   # count of indexed chunks\n", m.EntryCount)
		fmt.Fprintf(w, "provider_id:        %s\n", m.ProviderID)
		fmt.Fprintf(w, "dimension:          %d\n", m.Dimension)
		fmt.Fprintf(w, "metric:             %s\n", m.Metric)
		fmt.Fprintf(w, "created_at:         %s\n", m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(w, "updated_at:         %s\n", m.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *s.DiskUsageBytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "embedding_provider: %s\n", s.Config.Provider)
	if s.Config.Model != "" {
		fmt.Fprintf(w, "embedding_model:    %s\n", s.Config.Model)
	}
	if s.Config.Dimensions > 0 {
		fmt.Fprintf(w, "embedding_dims:     %d\n", s.Config.Dimensions)
	}
	fmt.Fprintf(w, "chunk_size:         %d\n", s.Config.ChunkSize)
	fmt.Fprintf(w, "chunk_overlap:      %d\n", s.Config.ChunkOverlap)
	fmt.Fprintf(w, "chunk_strategy:     %s\n", s.Config.Strategy)
	fmt.Fprintf(w, "k:                  %d\n", s.Config.K)
	fmt.Fprintf(w, "metric:             %s\n", s.Config.Metric)
	fmt.Fprintf(w, "hybrid:             %t\n", s.Config.Hybrid)
	fmt.Fprintf(w, "openai_api_key:     %t\n", s.APIKeys["openai"])
}
