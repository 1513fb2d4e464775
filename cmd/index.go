package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	retrieverx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/retriever"
	configx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/config"
)

var indexOut string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the handset catalog into the search index",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexOut, "out", "o", "", "index file to write (defaults to CATALOG_INDEX_PATH)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	catalogCfg, err := configx.New[catalogx.Config]("CATALOG")
	if err != nil {
		return err
	}
	embeddingCfg, err := configx.New[retrieverx.Config]("EMBEDDING")
	if err != nil {
		return err
	}

	docs, err := catalogx.LoadHandsetsFile(catalogCfg.HandsetsPath)
	if err != nil {
		return err
	}
	embedder, err := retrieverx.NewEmbedder(ctx, *embeddingCfg)
	if err != nil {
		return err
	}

	path := indexOut
	if path == "" {
		path = catalogCfg.IndexPath
	}
	meta, err := retrieverx.BuildIndex(ctx, path, docs, embedder)
	if err != nil {
		return err
	}

	log.Info().
		Str("path", path).
		Str("embedder", meta.Embedder).
		Int("dimension", meta.Dimension).
		Int("documents", len(docs)).
		Msg("handset index built")
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d handsets into %s\n", len(docs), path)
	return nil
}
