// Package model defines the data structures shared by the repair engine,
// its adapters and its controllers.
package model

// Path represents a file system path.
type Path string

// File represents a source code file on disk.
type File struct {
	Path Path
	Hash string
}

// Program is one buggy input program. ID doubles as the lineage id of every
// candidate descended from it.
type Program struct {
	ID     string
	File   File
	Source string
}

// Problem bundles the programs under repair with the suite that judges them.
type Problem struct {
	Root     Path
	Suite    Suite
	Programs []Program
}
