package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/functree/modules/functionality/presentation/mappers"
	"github.com/iota-uz/functree/modules/functionality/services"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported --format %q (text|json|yaml)", format)
	}
}

func renderTree(w io.Writer, format, view string, tenantID uuid.UUID, roots []*services.TreeNode) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if format == formatText {
		return writeTreeText(w, roots)
	}
	var payload any
	switch view {
	case "", "nested":
		payload = mappers.TreeToViewModel(tenantID, roots)
	case "flat":
		payload = mappers.TreeToRows(tenantID, roots)
	default:
		return fmt.Errorf("unsupported --view %q (nested|flat)", view)
	}
	return encode(w, format, payload)
}

func renderNode(w io.Writer, format string, n services.Node) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if format == formatText {
		_, err := fmt.Fprintln(w, nodeLine(n))
		return err
	}
	return encode(w, format, mappers.NodeToViewModel(n))
}

func encode(w io.Writer, format string, payload any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(payload); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writeTreeText(w io.Writer, roots []*services.TreeNode) error {
	var err error
	for _, r := range roots {
		r.Walk(func(n *services.TreeNode, depth int) bool {
			_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), nodeLine(n.Node))
			return err == nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func nodeLine(n services.Node) string {
	return fmt.Sprintf("%s [%s] %s key=%s", n.Name, n.Kind, n.ID, strconv.FormatFloat(n.OrderKey, 'g', -1, 64))
}
