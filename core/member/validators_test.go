package member

import "testing"

func TestPasswordPolicyViolation(t *testing.T) {
	tests := []struct {
		name    string
		pwd     string
		mName   string
		email   string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 12!x", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "12345678", wantTag: pwdNotAllNumTag},
		{name: "no uppercase", pwd: "abcdefgh1!", wantTag: pwdComplexityTag},
		{name: "no special", pwd: "Abcdefgh12", wantTag: pwdComplexityTag},
		{name: "like the name", pwd: "AwaKone1!", mName: "Awa Kone", email: "awa@ttr.test", wantTag: pwdAttrSimTag},
		{name: "like the email", pwd: "Awa@ttr.test1", mName: "X", email: "awa@ttr.test", wantTag: pwdAttrSimTag},
		{name: "ok", pwd: "Kp9!vRz#2mQx", mName: "Awa Kone", email: "awa@ttr.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := passwordPolicyViolation(tt.pwd, tt.mName, tt.email); got != tt.wantTag {
				t.Errorf("passwordPolicyViolation() = %q, want %q", got, tt.wantTag)
			}
		})
	}
}

func TestPasswordPolicyText(t *testing.T) {
	if got := passwordPolicyText(pwdComplexityTag); got != pwdComplexityText {
		t.Errorf("passwordPolicyText() = %q", got)
	}
	if got := passwordPolicyText("lol"); got != "invalid password" {
		t.Errorf("passwordPolicyText() = %q", got)
	}
}
