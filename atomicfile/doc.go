/*
Package atomicfile writes files so that readers see either the old content
or the complete new content, never a partial write.

Data goes to a temporary file in the destination directory. Close() syncs
it and renames it over the destination. If any Write() failed, or the file
was cancelled with RemoveIfNotClosed(), the temporary file is deleted and
the destination is left untouched.

The record store uses it to create the backing file with its header row and
to rewrite spreadsheets; backups use it for compressed snapshots.

	w, err := atomicfile.New(path)
	if err != nil {
		return err
	}
	defer w.RemoveIfNotClosed()
	if _, err = w.Write(data); err != nil {
		return err
	}
	return w.Close()
*/
package atomicfile
