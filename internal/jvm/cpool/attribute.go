package cpool

// Attribute is a generic attribute_info: a name (already interned as a
// CONSTANT_Utf8_info) plus its already-serialized body. Every class,
// field, method, and Code attribute the serializer writes goes through
// this same shape (JVMS 4.7).
type Attribute struct {
	NameIndex Index
	Info      []byte
}

// GetAttribute interns name and wraps it with info into an Attribute ready
// to be written out by the class serializer.
func (p *Pool) GetAttribute(name string, info []byte) (Attribute, error) {
	nameIdx, err := p.GetUTF8(name)
	if err != nil {
		return Attribute{}, err
	}
	return Attribute{NameIndex: nameIdx, Info: info}, nil
}
