package index

import "fmt"

// SetChecksum stores the checksum a ledger had when it was last validated.
func (db *DB) SetChecksum(path, checksum string) error {
	_, err := db.conn.Exec(`
		INSERT INTO ledger_checksums (path, checksum, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, path, checksum)
	if err != nil {
		return fmt.Errorf("index: set checksum: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a ledger, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM ledger_checksums WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// DeleteChecksum forgets a ledger.
func (db *DB) DeleteChecksum(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM ledger_checksums WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete checksum: %w", err)
	}
	return nil
}

// AllChecksums returns path to checksum for every known ledger.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM ledger_checksums`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
