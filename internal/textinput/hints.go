package textinput

import "strings"

// Hints is the bitset of input restrictions handed to the host input method.
type Hints uint32

const (
	HintNoPredictiveText Hints = 1 << iota
	HintNoAutoUppercase
	HintPreferLowercase
	HintPreferUppercase
	HintHiddenText
	HintSensitiveData
	HintLatinOnly
	HintMultiLine
	HintDigitsOnly
	HintFormattedNumbersOnly
	HintDialableCharactersOnly
	HintURLCharactersOnly
	HintEmailCharactersOnly
	HintUppercaseOnly
	HintLowercaseOnly
	HintDate
	HintTime

	HintNone Hints = 0
)

var hintNames = []struct {
	hint Hints
	name string
}{
	{HintNoPredictiveText, "no-predictive-text"},
	{HintNoAutoUppercase, "no-auto-uppercase"},
	{HintPreferLowercase, "prefer-lowercase"},
	{HintPreferUppercase, "prefer-uppercase"},
	{HintHiddenText, "hidden"},
	{HintSensitiveData, "sensitive"},
	{HintLatinOnly, "latin-only"},
	{HintMultiLine, "multiline"},
	{HintDigitsOnly, "digits-only"},
	{HintFormattedNumbersOnly, "numbers-only"},
	{HintDialableCharactersOnly, "dialable-only"},
	{HintURLCharactersOnly, "url-only"},
	{HintEmailCharactersOnly, "email-only"},
	{HintUppercaseOnly, "uppercase-only"},
	{HintLowercaseOnly, "lowercase-only"},
	{HintDate, "date"},
	{HintTime, "time"},
}

// Has reports whether every bit of flag is set.
func (h Hints) Has(flag Hints) bool {
	return h&flag == flag
}

func (h Hints) String() string {
	if h == HintNone {
		return "none"
	}
	var parts []string
	for _, n := range hintNames {
		if h&n.hint != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ContentHint is the protocol's content_hint bitfield.
type ContentHint uint32

const (
	ContentHintNone               ContentHint = 0x0
	ContentHintCompletion         ContentHint = 0x1
	ContentHintSpellcheck         ContentHint = 0x2
	ContentHintAutoCapitalization ContentHint = 0x4
	ContentHintLowercase          ContentHint = 0x8
	ContentHintUppercase          ContentHint = 0x10
	ContentHintTitlecase          ContentHint = 0x20
	ContentHintHiddenText         ContentHint = 0x40
	ContentHintSensitiveData      ContentHint = 0x80
	ContentHintLatin              ContentHint = 0x100
	ContentHintMultiline          ContentHint = 0x200
)

// ContentPurpose is the protocol's content_purpose enum.
type ContentPurpose uint32

const (
	ContentPurposeNormal ContentPurpose = iota
	ContentPurposeAlpha
	ContentPurposeDigits
	ContentPurposeNumber
	ContentPurposePhone
	ContentPurposeURL
	ContentPurposeEmail
	ContentPurposeName
	ContentPurposePassword
	ContentPurposePin
	ContentPurposeDate
	ContentPurposeTime
	ContentPurposeDatetime
	ContentPurposeTerminal
)

// HintsFromContentType converts a set_content_type request into host hints.
func HintsFromContentType(hint ContentHint, purpose ContentPurpose) Hints {
	h := HintNone

	if hint&ContentHintCompletion == 0 {
		h |= HintNoPredictiveText
	}
	if hint&ContentHintAutoCapitalization == 0 {
		h |= HintNoAutoUppercase
	}
	if hint&ContentHintLowercase != 0 {
		h |= HintPreferLowercase
	}
	if hint&ContentHintUppercase != 0 {
		h |= HintPreferUppercase
	}
	if hint&ContentHintHiddenText != 0 {
		h |= HintHiddenText
	}
	if hint&ContentHintSensitiveData != 0 {
		h |= HintSensitiveData
	}
	if hint&ContentHintLatin != 0 {
		h |= HintLatinOnly
	}
	if hint&ContentHintMultiline != 0 {
		h |= HintMultiLine
	}

	switch purpose {
	case ContentPurposeAlpha:
		h |= HintUppercaseOnly | HintLowercaseOnly
	case ContentPurposeDigits:
		h |= HintDigitsOnly
	case ContentPurposeNumber:
		h |= HintFormattedNumbersOnly
	case ContentPurposePhone:
		h |= HintDialableCharactersOnly
	case ContentPurposeURL:
		h |= HintURLCharactersOnly
	case ContentPurposeEmail:
		h |= HintEmailCharactersOnly
	case ContentPurposeDate:
		h |= HintDate
	case ContentPurposeTime:
		h |= HintTime
	case ContentPurposeDatetime:
		h |= HintDate | HintTime
	}

	return h
}

// ContentTypeFromHints is the reverse of HintsFromContentType. Information
// that has no protocol equivalent is dropped.
func ContentTypeFromHints(h Hints) (ContentHint, ContentPurpose) {
	hint := ContentHintNone
	purpose := ContentPurposeNormal

	if h&HintHiddenText != 0 {
		hint |= ContentHintHiddenText
	}
	if h&HintSensitiveData != 0 {
		hint |= ContentHintSensitiveData
	}
	if h&HintNoAutoUppercase == 0 {
		hint |= ContentHintAutoCapitalization
	}
	if h&HintPreferUppercase != 0 {
		hint |= ContentHintUppercase
	}
	if h&HintPreferLowercase != 0 {
		hint |= ContentHintLowercase
	}
	if h&HintNoPredictiveText == 0 {
		hint |= ContentHintCompletion | ContentHintSpellcheck
	}

	switch {
	case h.Has(HintDate | HintTime):
		purpose = ContentPurposeDatetime
	case h&HintDate != 0:
		purpose = ContentPurposeDate
	case h&HintTime != 0:
		purpose = ContentPurposeTime
	}

	if h&HintLatinOnly != 0 {
		hint |= ContentHintLatin
	}
	if h&HintMultiLine != 0 {
		hint |= ContentHintMultiline
	}
	if h&HintUppercaseOnly != 0 {
		hint |= ContentHintUppercase
	}
	if h&HintLowercaseOnly != 0 {
		hint |= ContentHintLowercase
	}

	switch {
	case h&HintURLCharactersOnly != 0:
		purpose = ContentPurposeURL
	case h&HintEmailCharactersOnly != 0:
		purpose = ContentPurposeEmail
	case h&HintDialableCharactersOnly != 0:
		purpose = ContentPurposePhone
	case h&HintFormattedNumbersOnly != 0:
		purpose = ContentPurposeNumber
	case h&HintDigitsOnly != 0:
		purpose = ContentPurposeDigits
	}

	return hint, purpose
}
