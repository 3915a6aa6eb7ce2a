package registration

import (
	"strconv"
	"strings"
)

// Form field names submitted to the registration endpoint. These are the
// exact keys the site expects; renaming any of them breaks submission.
const (
	fieldAction   = "Action"
	fieldDayID    = "idNgayBanHang"
	fieldSession  = "idPhien"
	fieldFullName = "HoTen"
	fieldDOBDay   = "NgaySinh_Ngay"
	fieldDOBMonth = "NgaySinh_Thang"
	fieldDOBYear  = "NgaySinh_Nam"
	fieldPhone    = "SoDienThoai"
	fieldEmail    = "Email"
	fieldIDNumber = "CCCD"
	fieldCaptcha  = "Captcha"

	actionRegister = "DangKyThamDu"
)

// BuildPayload assembles the submission form values for one row. DOB fields
// are coerced to integer-valued strings: spreadsheet numerics arrive as
// floats and the form rejects "5.0".
func BuildPayload(dayID, sessionID string, row Row, captcha string) map[string]string {
	return map[string]string{
		fieldAction:   actionRegister,
		fieldDayID:    dayID,
		fieldSession:  sessionID,
		fieldFullName: strings.TrimSpace(row.FullName),
		fieldDOBDay:   intString(row.DOBDay),
		fieldDOBMonth: intString(row.DOBMonth),
		fieldDOBYear:  intString(row.DOBYear),
		fieldPhone:    strings.TrimSpace(row.Phone),
		fieldEmail:    strings.TrimSpace(row.Email),
		fieldIDNumber: strings.TrimSpace(row.IDNumber),
		fieldCaptcha:  strings.TrimSpace(captcha),
	}
}

func intString(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}
