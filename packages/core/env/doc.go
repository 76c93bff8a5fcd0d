// Package env loads .env files and resolves {{...}} templates in header
// values.
//
// A template expression is one of:
//   - {{$NAME}}: the NAME environment variable
//   - {{name(args)}}: a builtin function, evaluated on every resolution
//   - {{name}}: a variable set on the Resolver
//
// Unresolved expressions are left in place and reported through WarnFunc.
package env
