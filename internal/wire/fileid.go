package wire

import "strings"

// SplitFileID splits a "group/path/to/file" file identifier into its group
// and remote-filename parts.
func SplitFileID(fileID string) (group, remoteFilename string, err error) {
	if fileID == "" {
		return "", "", ErrInvalidFileID
	}

	parts := strings.SplitN(fileID, "/", 2)
	if len(parts) != 2 {
		return "", "", ErrInvalidFileID
	}

	group, remoteFilename = parts[0], parts[1]
	if group == "" || len(group) > GroupNameMaxLen || remoteFilename == "" {
		return "", "", ErrInvalidFileID
	}
	return group, remoteFilename, nil
}

// JoinFileID is the inverse of SplitFileID.
func JoinFileID(group, remoteFilename string) string {
	return group + "/" + remoteFilename
}
