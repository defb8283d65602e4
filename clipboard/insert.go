package clipboard

import "time"

// Insert places text at the cursor by copying it and sending a paste
// keystroke, then restores whatever the clipboard held before. The
// restore is delayed so slow compositors read the new content first.
func Insert(text string) error {
	prev, prevErr := Read()

	if err := Copy(text); err != nil {
		return err
	}
	if err := Paste(); err != nil {
		return err
	}

	if prevErr == nil {
		time.Sleep(150 * time.Millisecond)
		if err := Copy(prev); err != nil {
			return err
		}
	}
	return nil
}
