package domain

// Zero overwrites b with zeros. Key material and decrypted card data are zeroed as
// soon as the operation that needed them returns.
func Zero(b []byte) {
	clear(b)
}
