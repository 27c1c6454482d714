// Package blockfile tracks which named files reference which cache blocks.
package blockfile

import "slices"

// BlockFile is a named logical file made of an ordered sequence of block hashes.
type BlockFile struct {
	Name        string   `json:"name"         yaml:"name"`
	BlockHashes []string `json:"block_hashes" yaml:"block_hashes"`
}

// Registry maps block hashes back to the files that reference them.
// It only ever grows. Files are identified by name.
type Registry struct {
	byHash map[string][]string    // hash -> file names, registration order.
	files  map[string]*storedFile // name -> merged file.
	order  []string               // file names, registration order.
}

type storedFile struct {
	file    BlockFile
	members map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byHash: make(map[string][]string),
		files:  make(map[string]*storedFile),
	}
}

// Register adds a back-reference from every hash of file to file.
// Hashes never seen in any record are accepted. The first registration of a
// name keeps its hash sequence as given, repeats included. Registering the same
// name again appends only hashes the file does not list yet. A file never
// appears twice among a hash's back-references.
func (r *Registry) Register(file BlockFile) {
	stored, ok := r.files[file.Name]
	if !ok {
		stored = &storedFile{
			file:    BlockFile{Name: file.Name, BlockHashes: slices.Clone(file.BlockHashes)},
			members: make(map[string]struct{}, len(file.BlockHashes)),
		}
		r.files[file.Name] = stored
		r.order = append(r.order, file.Name)
	}

	for _, h := range file.BlockHashes {
		if _, seen := stored.members[h]; seen {
			continue
		}

		stored.members[h] = struct{}{}
		r.byHash[h] = append(r.byHash[h], file.Name)

		if ok {
			stored.file.BlockHashes = append(stored.file.BlockHashes, h)
		}
	}
}

// FilesFor returns the files referencing blockHash, in registration order.
func (r *Registry) FilesFor(blockHash string) []BlockFile {
	names := r.byHash[blockHash]
	if len(names) == 0 {
		return nil
	}

	files := make([]BlockFile, 0, len(names))
	for _, name := range names {
		files = append(files, r.file(name))
	}

	return files
}

// IsReferenced reports whether at least one file references blockHash.
func (r *Registry) IsReferenced(blockHash string) bool {
	return len(r.byHash[blockHash]) > 0
}

// Files returns every registered file in registration order.
func (r *Registry) Files() []BlockFile {
	files := make([]BlockFile, 0, len(r.order))
	for _, name := range r.order {
		files = append(files, r.file(name))
	}

	return files
}

// ReferencedHashes returns every hash referenced by a registered file, sorted.
func (r *Registry) ReferencedHashes() []string {
	hashes := make([]string, 0, len(r.byHash))
	for h := range r.byHash {
		hashes = append(hashes, h)
	}

	slices.Sort(hashes)

	return hashes
}

// Len returns the number of registered files.
func (r *Registry) Len() int {
	return len(r.order)
}

func (r *Registry) file(name string) BlockFile {
	stored := r.files[name]

	return BlockFile{Name: stored.file.Name, BlockHashes: slices.Clone(stored.file.BlockHashes)}
}
