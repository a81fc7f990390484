// Package media stores uploaded files under content-derived names in a sharded
// directory tree.
//
// A stored name is hex(hash(unique + hex(hash(contents)))) plus the lowercased
// original extension, with jpeg written as jpg. The leading characters of the
// digest pick the directories the file lives in: with a shard width of 2 and a
// depth of 2, "abcdef....jpg" is stored at <upload root>/ab/cd/abcdef....jpg
// and served from <upload dir>/ab/cd/abcdef....jpg.
//
// The upload root is RootDir/../WebDirName/UploadDir. Identical bytes always
// land on the same path, so re-uploading a file overwrites it in place.
//
// Nothing is remembered between calls; every path is recomputed from the file
// name and the Config. Directory creation tolerates concurrent creators, but
// no locking is done between an upload and a removal of the same name.
package media
