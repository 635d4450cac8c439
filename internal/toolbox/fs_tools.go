package toolbox

import (
	"encoding/base64"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/liftdev/lift/internal/sandbox"
)

const defaultMaxBytes = 200_000

func listDirTool(sb *sandbox.Sandbox) (Spec, Impl) {
	spec := Spec{
		Name:        "list_dir",
		Description: "Recursively list files and directories under a path (relative to repo root), filtered by a glob.",
		Properties: map[string]any{
			"path":           map[string]any{"type": "string", "description": "Starting directory relative to repo root.", "default": "."},
			"glob":           map[string]any{"type": "string", "description": "Glob pattern to filter results.", "default": "*"},
			"include_hidden": map[string]any{"type": "boolean", "description": "Include hidden files/folders.", "default": false},
		},
	}

	impl := func(args map[string]any) Result {
		path := stringArg(args, "path", ".")
		glob := stringArg(args, "glob", "*")
		includeHidden := boolArg(args, "include_hidden", false)

		root, err := sb.Resolve(path)
		if err != nil {
			return Result{"error": "escapes_root"}
		}
		if _, statErr := os.Stat(root); statErr != nil {
			return Result{"error": "not_found"}
		}

		var entries []map[string]any
		walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == root {
				return nil
			}
			rel, relErr := filepath.Rel(sb.Root(), p)
			if relErr != nil {
				return relErr
			}
			relSlash := filepath.ToSlash(rel)
			parts := strings.Split(relSlash, "/")

			for _, part := range parts {
				if strings.Contains(part, "cache") {
					return nil
				}
			}
			if !includeHidden {
				for _, part := range parts {
					if strings.HasPrefix(part, ".") {
						return nil
					}
				}
			}

			matched, _ := filepath.Match(glob, d.Name())
			if !matched {
				return nil
			}

			if d.IsDir() {
				entries = append(entries, map[string]any{"path": relSlash + "/", "is_directory": true})
				return nil
			}
			info, infoErr := d.Info()
			if infoErr != nil {
				return infoErr
			}
			entries = append(entries, map[string]any{"path": relSlash, "is_file": true, "bytes_size": info.Size()})
			return nil
		})
		if walkErr != nil {
			return Result{"error": "read_failed"}
		}

		sort.Slice(entries, func(i, j int) bool {
			return entries[i]["path"].(string) < entries[j]["path"].(string)
		})
		return Result{"entries": entries}
	}

	return spec, impl
}

// readFileAt reads up to maxBytes from offset in the file at rel,
// resolved through sb. It is shared by read_file and read_many.
func readFileAt(sb *sandbox.Sandbox, rel string, offset, maxBytes int) Result {
	p, err := sb.Resolve(rel)
	if err != nil {
		return Result{"path": rel, "error": "escapes_root"}
	}
	info, statErr := os.Stat(p)
	if statErr != nil {
		return Result{"path": rel, "error": "not_found"}
	}
	if info.IsDir() {
		return Result{"path": rel, "error": "is_directory"}
	}

	raw, readErr := os.ReadFile(p)
	if readErr != nil {
		return Result{"path": rel, "error": "read_failed"}
	}

	if offset > len(raw) {
		return Result{"path": rel, "error": "offset_after_EOF"}
	}

	truncated := false
	end := len(raw)
	if len(raw) > offset+maxBytes {
		end = offset + maxBytes
		truncated = true
	}
	slice := raw[offset:end]

	if utf8.Valid(slice) {
		return Result{"path": rel, "text": string(slice), "truncated": truncated}
	}
	return Result{
		"path":        rel,
		"base64_data": base64.StdEncoding.EncodeToString(slice),
		"encoding":    "base64",
		"truncated":   truncated,
	}
}

func readFileTool(sb *sandbox.Sandbox) (Spec, Impl) {
	spec := Spec{
		Name:        "read_file",
		Description: "Read up to max_bytes starting from offset from a single file under the repo root.",
		Properties: map[string]any{
			"path":      map[string]any{"type": "string", "description": "File path relative to repo root."},
			"offset":    map[string]any{"type": "integer", "description": "Byte offset to start reading from.", "default": 0},
			"max_bytes": map[string]any{"type": "integer", "description": "Maximum number of bytes to read.", "default": defaultMaxBytes, "minimum": 1},
		},
		Required: []string{"path"},
	}

	impl := func(args map[string]any) Result {
		path := stringArg(args, "path", "")
		offset := intArg(args, "offset", 0)
		maxBytes := intArg(args, "max_bytes", defaultMaxBytes)
		return readFileAt(sb, path, offset, maxBytes)
	}
	return spec, impl
}

func readManyTool(sb *sandbox.Sandbox) (Spec, Impl) {
	const maxFiles = 10

	spec := Spec{
		Name:        "read_many",
		Description: "Read multiple explicitly listed files under the repo root.",
		Properties: map[string]any{
			"paths":              map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "File paths relative to repo root."},
			"offset":             map[string]any{"type": "integer", "description": "Byte offset to start reading from.", "default": 0},
			"max_bytes_per_file": map[string]any{"type": "integer", "description": "Maximum bytes to read per file.", "default": defaultMaxBytes},
		},
		Required: []string{"paths"},
	}

	impl := func(args map[string]any) Result {
		paths := stringSliceArg(args, "paths")
		offset := intArg(args, "offset", 0)
		maxBytes := intArg(args, "max_bytes_per_file", defaultMaxBytes)

		if len(paths) == 0 {
			return Result{"error": "no_files_provided"}
		}
		if len(paths) > maxFiles {
			return Result{"error": "too_many_files", "max_allowed": maxFiles, "requested": len(paths)}
		}

		entries := make([]Result, 0, len(paths))
		for _, p := range paths {
			entries = append(entries, readFileAt(sb, p, offset, maxBytes))
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i]["path"].(string) < entries[j]["path"].(string)
		})

		anyVal := make([]any, 0, len(entries))
		for _, e := range entries {
			anyVal = append(anyVal, e)
		}
		return Result{"entries": anyVal}
	}
	return spec, impl
}

func writeFileTool(sb *sandbox.Sandbox) (Spec, Impl) {
	spec := Spec{
		Name:        "write_file",
		Description: "Create or overwrite a UTF-8 text file under the repo root.",
		Properties: map[string]any{
			"path":      map[string]any{"type": "string", "description": "Target file path relative to repo root."},
			"content":   map[string]any{"type": "string", "description": "UTF-8 text content to write."},
			"overwrite": map[string]any{"type": "boolean", "description": "If false and file exists, return an error.", "default": true},
		},
		Required: []string{"path", "content"},
	}

	impl := func(args map[string]any) Result {
		path := stringArg(args, "path", "")
		content := stringArg(args, "content", "")
		overwrite := boolArg(args, "overwrite", true)

		p, err := sb.Resolve(path)
		if err != nil {
			return Result{"error": "escapes_root"}
		}

		if mkdirErr := os.MkdirAll(filepath.Dir(p), 0o755); mkdirErr != nil {
			return Result{"error": "parent_mkdir_failed"}
		}

		if _, statErr := os.Stat(p); statErr == nil && !overwrite {
			return Result{"error": "exists"}
		}

		if writeErr := os.WriteFile(p, []byte(content), 0o644); writeErr != nil {
			return Result{"error": "write_failed"}
		}
		return Result{"ok": true}
	}
	return spec, impl
}

func deletePathTool(sb *sandbox.Sandbox) (Spec, Impl) {
	spec := Spec{
		Name:        "delete_path",
		Description: "Delete a file or directory (recursively) under the repo root. Idempotent for missing paths; refuses to delete the repo root.",
		Properties: map[string]any{
			"path": map[string]any{"type": "string", "description": "Path relative to repo root to delete."},
		},
		Required: []string{"path"},
	}

	impl := func(args map[string]any) Result {
		path := stringArg(args, "path", "")

		p, err := sb.Resolve(path)
		if err != nil {
			return Result{"error": "escapes_root"}
		}
		if p == sb.Root() {
			return Result{"error": "refuse_delete_root"}
		}
		if _, statErr := os.Stat(p); os.IsNotExist(statErr) {
			return Result{"ok": true}
		}
		if removeErr := os.RemoveAll(p); removeErr != nil {
			return Result{"error": "delete_failed"}
		}
		return Result{"ok": true}
	}
	return spec, impl
}

func replaceInFileTool(sb *sandbox.Sandbox) (Spec, Impl) {
	spec := Spec{
		Name:        "replace_in_file",
		Description: "Replace exactly one occurrence of find with replace in a UTF-8 text file.",
		Properties: map[string]any{
			"path":    map[string]any{"type": "string", "description": "File path relative to repo root."},
			"find":    map[string]any{"type": "string", "description": "Substring to locate (must occur exactly once)."},
			"replace": map[string]any{"type": "string", "description": "Replacement substring (must differ from find)."},
		},
		Required: []string{"path", "find", "replace"},
	}

	impl := func(args map[string]any) Result {
		path := stringArg(args, "path", "")
		find := stringArg(args, "find", "")
		replace := stringArg(args, "replace", "")

		if find == replace {
			return Result{"error": "find_equals_replace"}
		}

		p, err := sb.Resolve(path)
		if err != nil {
			return Result{"error": "escapes_root"}
		}
		info, statErr := os.Stat(p)
		if statErr != nil {
			return Result{"error": "not_found"}
		}
		if info.IsDir() {
			return Result{"error": "is_directory"}
		}

		raw, readErr := os.ReadFile(p)
		if readErr != nil {
			return Result{"error": "read_failed"}
		}
		if !utf8.Valid(raw) {
			return Result{"error": "not_utf8_text"}
		}
		text := string(raw)

		occurrences := strings.Count(text, find)
		if occurrences == 0 {
			return Result{"error": "find_not_found", "found": 0}
		}
		if occurrences > 1 {
			return Result{"error": "find_not_unique", "found": occurrences}
		}

		newText := strings.Replace(text, find, replace, 1)
		if writeErr := os.WriteFile(p, []byte(newText), 0o644); writeErr != nil {
			return Result{"error": "write_failed"}
		}
		return Result{"ok": true}
	}
	return spec, impl
}
