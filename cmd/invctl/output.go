package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/tphummel/lab_inventory/internal/models"
)

func printItems(w io.Writer, k models.Kind, items []models.Item, asJSON bool) error {
	if asJSON {
		if items == nil {
			items = []models.Item{}
		}
		return writeJSON(w, items)
	}
	if len(items) == 0 {
		fmt.Fprintf(w, "No %s found.\n", k.Slug)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	header := []string{"ID", "REFERENCE"}
	for _, f := range k.Fields {
		header = append(header, strings.ToUpper(f))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, it := range items {
		row := []string{it.ID, it.ReferenceID}
		for _, f := range k.Fields {
			row = append(row, it.Get(f))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func printItem(w io.Writer, k models.Kind, it models.Item, asJSON bool) error {
	if asJSON {
		return writeJSON(w, it)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", it.ID)
	if it.ReferenceID != "" {
		fmt.Fprintf(tw, "reference:\t%s\n", it.ReferenceID)
	}
	for _, f := range k.Fields {
		fmt.Fprintf(tw, "%s:\t%s\n", f, it.Get(f))
	}
	if !it.CreatedAt.IsZero() {
		fmt.Fprintf(tw, "created:\t%s\n", it.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
	}
	return tw.Flush()
}

func printKinds(w io.Writer, asJSON bool) error {
	if asJSON {
		type kindJSON struct {
			Slug         string   `json:"slug"`
			Label        string   `json:"label"`
			Prefix       string   `json:"prefix"`
			Fields       []string `json:"fields"`
			SearchFields []string `json:"searchFields"`
		}
		out := make([]kindJSON, 0, len(models.Kinds))
		for _, k := range models.Kinds {
			out = append(out, kindJSON{k.Slug, k.Label, k.Prefix, k.Fields, k.SearchFields})
		}
		return writeJSON(w, out)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "KIND\tLABEL\tPREFIX\tFIELDS")
	for _, k := range models.Kinds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k.Slug, k.Label, k.Prefix, strings.Join(k.Fields, ", "))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
