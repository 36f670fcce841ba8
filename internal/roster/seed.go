package roster

// SeedStudents is the starter roster written on first read when no students
// have ever been stored, so a fresh install can take attendance immediately.
func SeedStudents() []Student {
	return []Student{
		{ID: "1", Name: "Ahmed Ali", RollNumber: "ST001", ClassName: "Class A"},
		{ID: "2", Name: "Fatima Khan", RollNumber: "ST002", ClassName: "Class A"},
		{ID: "3", Name: "Hassan Sheikh", RollNumber: "ST003", ClassName: "Class B"},
		{ID: "4", Name: "Aisha Rahman", RollNumber: "ST004", ClassName: "Class B"},
		{ID: "5", Name: "Omar Abdullah", RollNumber: "ST005", ClassName: "Class A"},
		{ID: "6", Name: "Zara Malik", RollNumber: "ST006", ClassName: "Class A"},
		{ID: "7", Name: "Ali Hassan", RollNumber: "ST007", ClassName: "Class B"},
		{ID: "8", Name: "Maryam Ahmed", RollNumber: "ST008", ClassName: "Class B"},
	}
}
