package domain

import "github.com/google/uuid"

// Text marshaling so the uuid-backed types render as canonical UUID
// strings in JSON documents and broadcast payloads. Named types do not
// inherit uuid.UUID's methods, so these are spelled out per type.

func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = SessionID(parsed)
	return nil
}

func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(parsed)
	return nil
}

func (id ApprovalID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *ApprovalID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ApprovalID(parsed)
	return nil
}

func (id LogID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *LogID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = LogID(parsed)
	return nil
}
